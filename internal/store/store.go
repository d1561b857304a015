package store

import (
	"context"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/models"
)

type CreateRequestInput struct {
	Kind          string
	StoreID       string
	SubjectID     string
	RequesterID   string
	Justification string
	Proposed      models.ProposedChange
	Deadline      *time.Time
	CreatedAt     time.Time
}

type DecideRequestInput struct {
	RequestID  string
	ReviewerID string
	Outcome    string
	Comment    string
	DecidedAt  time.Time
}

type RequestFilter struct {
	StoreID string
	Status  string
	Kind    string
	Limit   int
}

type RequestStore interface {
	CreateRequest(ctx context.Context, input CreateRequestInput) (models.ChangeRequest, error)
	GetRequest(ctx context.Context, requestID string) (models.ChangeRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.ChangeRequest, error)
	CountPendingRequests(ctx context.Context, storeID string) (map[string]int, error)
	DecideRequest(ctx context.Context, input DecideRequestInput) (models.ChangeRequest, error)
	MarkTicketReviewed(ctx context.Context, ticketID, reviewerID string) (models.Ticket, error)
	SweepTicketApprovals(ctx context.Context, now time.Time, batchSize int) (int, error)
}

type CreateReportInput struct {
	StoreID            string
	ReportedEmployeeID string
	ReporterEmployeeID string
	Description        string
	IncidentDate       string
	EligibleVoterIDs   []string
	Threshold          int
	ExpiresAt          time.Time
	CreatedAt          time.Time
}

type CastVoteInput struct {
	ReportID string
	VoterID  string
	Confirms bool
	Note     string
	VotedAt  time.Time
}

type DecideReportInput struct {
	ReportID      string
	ReviewerID    string
	Decision      string
	Action        string
	ActionDetails string
	Notes         string
	DecidedAt     time.Time
}

type ReportFilter struct {
	StoreID string
	Status  string
	Limit   int
}

type ViolationStore interface {
	CreateReport(ctx context.Context, input CreateReportInput) (models.ViolationReport, error)
	GetReport(ctx context.Context, reportID string) (models.ViolationReport, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]models.ViolationReport, error)
	CastVote(ctx context.Context, input CastVoteInput) (models.ViolationReport, error)
	RequestInfo(ctx context.Context, reportID, requestedBy, message string, at time.Time) (models.ViolationReport, error)
	SubmitInfo(ctx context.Context, reportID, reporterID, text string, at time.Time) (models.ViolationReport, error)
	DecideReport(ctx context.Context, input DecideReportInput) (models.ViolationReport, error)
	ListOnShiftTechnicians(ctx context.Context, storeID, date string) ([]string, error)
	GetQuorumRule(ctx context.Context, storeID string) (string, error)
	SweepExpiredReports(ctx context.Context, now time.Time) (int, error)
}

type CreateCashTransactionInput struct {
	StoreID     string
	Date        string
	Type        string
	Amount      float64
	Description string
	Category    string
	CreatedBy   string
	CreatedAt   time.Time
}

type EditCashTransactionInput struct {
	TransactionID  string
	EditorID       string
	NewAmount      float64
	NewDescription string
	NewCategory    string
	Reason         string
	EditedAt       time.Time
}

type RecordCountInput struct {
	StoreID       string
	Date          string
	Denominations models.DenominationCounts
	Notes         string
	ActorID       string
	At            time.Time
}

// LedgerTotals feeds the read-side summary computation. Values always
// reflect the live status of the underlying cash transaction rows.
type LedgerTotals struct {
	ExpectedFromSales float64
	ApprovedCashIn    float64
	ApprovedCashOut   float64
}

type CashStore interface {
	CreateCashTransaction(ctx context.Context, input CreateCashTransactionInput) (models.CashTransaction, error)
	GetCashTransaction(ctx context.Context, transactionID string) (models.CashTransaction, error)
	EditCashTransaction(ctx context.Context, input EditCashTransactionInput) (models.CashTransaction, error)
	ListEditHistory(ctx context.Context, transactionID string) ([]models.CashEdit, error)
	RecordOpening(ctx context.Context, input RecordCountInput) (models.CashLedgerDay, error)
	RecordClosing(ctx context.Context, input RecordCountInput) (models.CashLedgerDay, error)
	GetLedgerDay(ctx context.Context, storeID, date string) (models.CashLedgerDay, bool, error)
	GetPreviousClosing(ctx context.Context, storeID, date string) (*models.DenominationCounts, error)
	LedgerTotals(ctx context.Context, storeID, date string) (LedgerTotals, error)
}

type Session struct {
	SessionID  string
	EmployeeID string
	Role       string
	StoreIDs   []string
	ExpiresAt  time.Time
}

type LoginInput struct {
	EmployeeID string
	PIN        string
	StoreID    string
}

type ActorStore interface {
	Login(ctx context.Context, input LoginInput) (Session, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
}
