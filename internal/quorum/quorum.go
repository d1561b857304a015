// Package quorum holds the peer-voting rules for violation reports: who may
// vote, how many confirmations move a report to management review, and who
// may see the reporter's identity.
package quorum

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/onglesrivieres/salon360-sub003/internal/models"
	"github.com/onglesrivieres/salon360-sub003/internal/store"
)

// VotingWindow is how long a report collects responses before it expires.
const VotingWindow = 60 * time.Minute

// minConfirmations is the quorum floor: no store rule may require fewer.
const minConfirmations = 2

// EligibleVoters snapshots the voter set at report creation: the on-shift
// technicians minus the reported employee and the reporter. The set is fixed
// afterwards; employees joining later never become voters.
func EligibleVoters(onShift []string, reportedID, reporterID string) []string {
	seen := make(map[string]struct{}, len(onShift))
	var eligible []string
	for _, id := range onShift {
		if id == "" || id == reportedID || id == reporterID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		eligible = append(eligible, id)
	}
	return eligible
}

// Threshold computes the confirmations needed for the report to reach
// management review: a simple majority of the eligible voters, clamped to
// the quorum floor and to the voter count. A store-level override rule, when
// present, replaces the majority formula but not the clamping.
func Threshold(eligibleCount int, overrideRule string) int {
	threshold := eligibleCount/2 + 1
	if rule := strings.TrimSpace(overrideRule); rule != "" {
		if value, err := evalOverride(rule, eligibleCount); err == nil && value > 0 {
			threshold = value
		}
	}
	return clamp(threshold, eligibleCount)
}

func evalOverride(rule string, eligibleCount int) (int, error) {
	result, err := expr.Eval(rule, map[string]interface{}{"eligible": eligibleCount})
	if err != nil {
		return 0, err
	}
	switch v := result.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("quorum rule returned %T, want number", result)
	}
}

func clamp(threshold, eligibleCount int) int {
	if threshold < minConfirmations {
		threshold = minConfirmations
	}
	if eligibleCount > 0 && threshold > eligibleCount {
		threshold = eligibleCount
	}
	return threshold
}

// Outcome returns the status a report should hold after a vote lands.
// Reaching the threshold moves it to review immediately; a full response
// round moves it to review even when the threshold was never met.
func Outcome(eligibleCount, threshold, votesReceived, confirmations int) string {
	if confirmations >= threshold {
		return models.ViolationPendingApproval
	}
	if votesReceived >= eligibleCount {
		return models.ViolationPendingApproval
	}
	return models.ViolationCollecting
}

// CheckVote validates a vote against the report snapshot. The store repeats
// the already-voted check as a conditional insert, so a concurrent duplicate
// still records only once.
func CheckVote(report models.ViolationReport, voterID string) error {
	if report.Status != models.ViolationCollecting {
		return fmt.Errorf("%w: report is %s", store.ErrInvalidState, report.Status)
	}
	eligible := false
	for _, id := range report.EligibleVoterIDs {
		if id == voterID {
			eligible = true
			break
		}
	}
	if !eligible {
		return fmt.Errorf("%w: employee is not in the voter set for this report", store.ErrNotEligible)
	}
	for _, vote := range report.Votes {
		if vote.VoterID == voterID {
			return fmt.Errorf("%w: employee already responded", store.ErrAlreadyVoted)
		}
	}
	return nil
}

// CheckDecision validates the terminal management decision. It is available
// from pending_approval and from expired (management may still act on an
// expired report), and never from any other status.
func CheckDecision(report models.ViolationReport, reviewer models.Actor, decision, action, notes string) error {
	if !store.ValidReportTransition("decide", report.Status) {
		return fmt.Errorf("%w: report is %s", store.ErrInvalidState, report.Status)
	}
	if !reviewer.HasAnyRole(models.RoleOwner, models.RoleAdmin, models.RoleManager) {
		return fmt.Errorf("%w: role may not decide violation reports", store.ErrForbidden)
	}
	if reviewer.EmployeeID == report.ReportedEmployeeID {
		return fmt.Errorf("%w: reported employee may not decide their own report", store.ErrForbidden)
	}
	if decision != models.DecisionConfirmed && decision != models.DecisionNoViolation {
		return fmt.Errorf("%w: decision must be confirmed or no_violation", store.ErrValidation)
	}
	switch action {
	case models.ActionNone, models.ActionWarning, models.ActionWrittenWarning, models.ActionQueueRemoval, models.ActionSuspension:
	default:
		return fmt.Errorf("%w: unknown action %q", store.ErrValidation, action)
	}
	if strings.TrimSpace(notes) == "" {
		return fmt.Errorf("%w: decision notes are required", store.ErrValidation)
	}
	return nil
}

// CanSeeReporter applies the strict visibility rule: Owner, Admin and
// Manager only, and never the reported employee themselves.
func CanSeeReporter(caller models.Actor, reportedEmployeeID string) bool {
	if caller.EmployeeID == reportedEmployeeID {
		return false
	}
	return caller.HasAnyRole(models.RoleOwner, models.RoleAdmin, models.RoleManager)
}

// Redact returns a copy of the report with the reporter's identity hidden
// from callers who may not see it.
func Redact(report models.ViolationReport, caller models.Actor) models.ViolationReport {
	if CanSeeReporter(caller, report.ReportedEmployeeID) {
		return report
	}
	report.ReporterEmployeeID = models.AnonymousReporter
	return report
}
