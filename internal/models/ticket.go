package models

import "time"

type Ticket struct {
	TicketID            string     `json:"ticket_id"`
	StoreID             string     `json:"store_id"`
	EmployeeID          string     `json:"employee_id"`
	Total               float64    `json:"total"`
	CashSales           float64    `json:"cash_sales"`
	CashTip             float64    `json:"cash_tip"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
	ApprovalStatus      string     `json:"approval_status"`
	RequiresAdminReview bool       `json:"requires_admin_review"`
}

type AttendanceShift struct {
	ShiftID    string     `json:"shift_id"`
	StoreID    string     `json:"store_id"`
	EmployeeID string     `json:"employee_id"`
	Date       string     `json:"date"`
	CheckIn    *time.Time `json:"check_in,omitempty"`
	CheckOut   *time.Time `json:"check_out,omitempty"`
	TotalHours float64    `json:"total_hours"`
}
