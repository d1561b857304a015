package models

import "time"

type ViolationReport struct {
	ReportID           string              `json:"report_id"`
	StoreID            string              `json:"store_id"`
	ReportedEmployeeID string              `json:"reported_employee_id"`
	ReporterEmployeeID string              `json:"reporter_employee_id"`
	Description        string              `json:"description"`
	IncidentDate       string              `json:"incident_date"`
	EligibleVoterIDs   []string            `json:"eligible_voter_ids"`
	Threshold          int                 `json:"threshold"`
	Status             string              `json:"status"`
	ExpiresAt          time.Time           `json:"expires_at"`
	CreatedAt          time.Time           `json:"created_at"`
	Votes              []Vote              `json:"votes,omitempty"`
	InfoRequest        *InfoRequest        `json:"info_request,omitempty"`
	Decision           *ManagementDecision `json:"decision,omitempty"`
}

type Vote struct {
	VoterID  string    `json:"voter_id"`
	Confirms bool      `json:"confirms"`
	Note     string    `json:"note,omitempty"`
	VotedAt  time.Time `json:"voted_at"`
}

type InfoRequest struct {
	RequestedBy   string     `json:"requested_by"`
	Message       string     `json:"message"`
	RequestedAt   time.Time  `json:"requested_at"`
	SubmittedInfo *string    `json:"submitted_info,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
}

type ManagementDecision struct {
	Decision      string    `json:"decision"`
	Action        string    `json:"action"`
	ActionDetails string    `json:"action_details,omitempty"`
	Notes         string    `json:"notes"`
	ReviewerID    string    `json:"reviewer_id"`
	DecidedAt     time.Time `json:"decided_at"`
}

const (
	ViolationCollecting      = "collecting_responses"
	ViolationPendingApproval = "pending_approval"
	ViolationApproved        = "approved"
	ViolationRejected        = "rejected"
	ViolationExpired         = "expired"
)

const (
	DecisionConfirmed   = "confirmed"
	DecisionNoViolation = "no_violation"
)

const (
	ActionNone           = "none"
	ActionWarning        = "warning"
	ActionWrittenWarning = "written_warning"
	ActionQueueRemoval   = "queue_removal"
	ActionSuspension     = "suspension"
)

// AnonymousReporter replaces the reporter id for callers who may not see it.
const AnonymousReporter = "anonymous"
