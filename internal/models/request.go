package models

import "time"

type ChangeRequest struct {
	RequestID     string         `json:"request_id"`
	Kind          string         `json:"kind"`
	StoreID       string         `json:"store_id"`
	SubjectID     string         `json:"subject_id"`
	RequesterID   string         `json:"requester_id"`
	Justification string         `json:"justification,omitempty"`
	Proposed      ProposedChange `json:"proposed"`
	Status        string         `json:"status"`
	ReviewerID    *string        `json:"reviewer_id,omitempty"`
	Comment       *string        `json:"comment,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	Deadline      *time.Time     `json:"deadline,omitempty"`
}

// ProposedChange is a tagged union: exactly one variant is non-nil,
// matching the request kind.
type ProposedChange struct {
	TicketClose *TicketCloseValue      `json:"ticket_close,omitempty"`
	Reopen      *TicketReopenValue     `json:"reopen,omitempty"`
	Cash        *CashApprovalValue     `json:"cash,omitempty"`
	CashChange  *CashTransactionChange `json:"cash_change,omitempty"`
	Inventory   *InventoryChange       `json:"inventory,omitempty"`
	Attendance  *AttendanceChange      `json:"attendance,omitempty"`
}

type TicketCloseValue struct {
	ClosedAt time.Time `json:"closed_at"`
}

type TicketReopenValue struct {
	Reason string `json:"reason"`
}

type CashApprovalValue struct {
	TransactionID string `json:"transaction_id"`
}

type CashTransactionChange struct {
	OldAmount         float64 `json:"old_amount"`
	NewAmount         float64 `json:"new_amount"`
	OldDescription    string  `json:"old_description"`
	NewDescription    string  `json:"new_description"`
	OldCategory       string  `json:"old_category,omitempty"`
	NewCategory       string  `json:"new_category,omitempty"`
	IsDeletionRequest bool    `json:"is_deletion_request"`
}

type InventoryChange struct {
	ItemID          string  `json:"item_id"`
	TransactionType string  `json:"transaction_type"`
	Quantity        float64 `json:"quantity"`
}

type AttendanceChange struct {
	OldCheckIn  *time.Time `json:"old_check_in,omitempty"`
	OldCheckOut *time.Time `json:"old_check_out,omitempty"`
	NewCheckIn  *time.Time `json:"new_check_in,omitempty"`
	NewCheckOut *time.Time `json:"new_check_out,omitempty"`
}

const (
	KindTicketApproval          = "ticket_approval"
	KindTicketReopenRequest     = "ticket_reopen_request"
	KindCashTransactionApproval = "cash_transaction_approval"
	KindCashTransactionChange   = "cash_transaction_change"
	KindInventoryApproval       = "inventory_transaction_approval"
	KindAttendanceChange        = "attendance_change"
)

const (
	StatusPending      = "pending"
	StatusApproved     = "approved"
	StatusRejected     = "rejected"
	StatusAutoApproved = "auto_approved"
	StatusExpired      = "expired"
)

const (
	OutcomeApprove = "approve"
	OutcomeReject  = "reject"
)
