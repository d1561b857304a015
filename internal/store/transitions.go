package store

import "github.com/onglesrivieres/salon360-sub003/internal/models"

var requestTransitions = map[string][]string{
	"approve":      {models.StatusPending},
	"reject":       {models.StatusPending},
	"auto_approve": {models.StatusPending},
	"expire":       {models.StatusPending},
}

var reportTransitions = map[string][]string{
	"vote":         {models.ViolationCollecting},
	"to_review":    {models.ViolationCollecting},
	"expire":       {models.ViolationCollecting},
	"request_info": {models.ViolationCollecting, models.ViolationPendingApproval},
	"submit_info":  {models.ViolationCollecting, models.ViolationPendingApproval},
	"decide":       {models.ViolationPendingApproval, models.ViolationExpired},
}

func ValidRequestTransition(action, fromStatus string) bool {
	return allowed(requestTransitions, action, fromStatus)
}

func ValidReportTransition(action, fromStatus string) bool {
	return allowed(reportTransitions, action, fromStatus)
}

func allowed(table map[string][]string, action, fromStatus string) bool {
	statuses, ok := table[action]
	if !ok {
		return false
	}
	for _, status := range statuses {
		if status == fromStatus {
			return true
		}
	}
	return false
}
