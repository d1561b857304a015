package models

import "time"

// DenominationCounts holds the counted bills and coins for a cash drawer.
// Field names mirror the salon's count sheet.
type DenominationCounts struct {
	Bill100 int `json:"bill_100"`
	Bill50  int `json:"bill_50"`
	Bill20  int `json:"bill_20"`
	Bill10  int `json:"bill_10"`
	Bill5   int `json:"bill_5"`
	Bill2   int `json:"bill_2"`
	Bill1   int `json:"bill_1"`
	Coin25  int `json:"coin_25"`
	Coin10  int `json:"coin_10"`
	Coin5   int `json:"coin_5"`
}

type CashTransaction struct {
	TransactionID string    `json:"transaction_id"`
	StoreID       string    `json:"store_id"`
	Date          string    `json:"date"`
	Type          string    `json:"type"`
	Amount        float64   `json:"amount"`
	Description   string    `json:"description"`
	Category      string    `json:"category,omitempty"`
	CreatedBy     string    `json:"created_by"`
	Status        string    `json:"status"`
	ApprovedBy    *string   `json:"approved_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type CashEdit struct {
	EditID         string    `json:"edit_id"`
	TransactionID  string    `json:"transaction_id"`
	EditorID       string    `json:"editor_id"`
	OldAmount      float64   `json:"old_amount"`
	NewAmount      float64   `json:"new_amount"`
	OldDescription string    `json:"old_description"`
	NewDescription string    `json:"new_description"`
	OldCategory    string    `json:"old_category,omitempty"`
	NewCategory    string    `json:"new_category,omitempty"`
	Reason         string    `json:"reason"`
	EditedAt       time.Time `json:"edited_at"`
}

type CashLedgerDay struct {
	StoreID   string              `json:"store_id"`
	Date      string              `json:"date"`
	Opening   *DenominationCounts `json:"opening,omitempty"`
	Closing   *DenominationCounts `json:"closing,omitempty"`
	Notes     string              `json:"notes,omitempty"`
	CreatedBy string              `json:"created_by"`
	UpdatedBy string              `json:"updated_by"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// LedgerSummary is derived on demand and never persisted.
type LedgerSummary struct {
	OpeningTotal      float64 `json:"opening_total"`
	ClosingTotal      float64 `json:"closing_total"`
	ExpectedFromSales float64 `json:"expected_from_sales"`
	ApprovedCashIn    float64 `json:"approved_cash_in"`
	ApprovedCashOut   float64 `json:"approved_cash_out"`
	NetCollected      float64 `json:"net_collected"`
	ActualChange      float64 `json:"actual_change"`
	Variance          float64 `json:"variance"`
	Balanced          bool    `json:"balanced"`
}

const (
	CashIn  = "cash_in"
	CashOut = "cash_out"
)

const (
	CashPendingApproval = "pending_approval"
	CashApproved        = "approved"
	CashRejected        = "rejected"
)
