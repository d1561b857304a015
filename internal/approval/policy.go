// Package approval holds the review rules for change requests: which roles
// may decide each kind, which kinds auto-resolve at a deadline, and the
// checks every decision must pass before the store flips any state.
package approval

import (
	"fmt"
	"strings"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/models"
	"github.com/onglesrivieres/salon360-sub003/internal/store"
)

type Policy struct {
	ReviewerRoles   []string
	Deadline        time.Duration
	// DeadlineOutcome is the terminal status the sweeper forces once the
	// deadline passes. Empty means the kind never auto-resolves.
	DeadlineOutcome string
}

var policies = map[string]Policy{
	models.KindTicketApproval: {
		ReviewerRoles:   []string{models.RoleOwner, models.RoleAdmin, models.RoleManager, models.RoleReceptionist},
		Deadline:        48 * time.Hour,
		DeadlineOutcome: models.StatusAutoApproved,
	},
	models.KindTicketReopenRequest: {
		ReviewerRoles: []string{models.RoleOwner, models.RoleAdmin, models.RoleManager},
	},
	models.KindCashTransactionApproval: {
		ReviewerRoles: []string{models.RoleOwner, models.RoleAdmin, models.RoleManager},
	},
	models.KindCashTransactionChange: {
		ReviewerRoles: []string{models.RoleOwner, models.RoleAdmin, models.RoleManager},
	},
	models.KindInventoryApproval: {
		ReviewerRoles: []string{models.RoleOwner, models.RoleAdmin, models.RoleManager, models.RoleSupervisor},
	},
	models.KindAttendanceChange: {
		ReviewerRoles: []string{models.RoleOwner, models.RoleAdmin, models.RoleManager},
	},
}

func PolicyFor(kind string) (Policy, bool) {
	policy, ok := policies[kind]
	return policy, ok
}

func KnownKind(kind string) bool {
	_, ok := policies[kind]
	return ok
}

// Deadline returns the auto-resolution deadline for the kind, or nil for
// kinds that never auto-resolve.
func Deadline(kind string, createdAt time.Time) *time.Time {
	policy, ok := policies[kind]
	if !ok || policy.Deadline <= 0 {
		return nil
	}
	deadline := createdAt.Add(policy.Deadline)
	return &deadline
}

func CanReview(kind string, actor models.Actor) bool {
	policy, ok := policies[kind]
	if !ok {
		return false
	}
	return actor.HasAnyRole(policy.ReviewerRoles...)
}

// CheckSubmit validates a submission before it reaches the store.
func CheckSubmit(input store.CreateRequestInput) error {
	if !KnownKind(input.Kind) {
		return fmt.Errorf("%w: unknown request kind %q", store.ErrValidation, input.Kind)
	}
	if input.SubjectID == "" || input.RequesterID == "" || input.StoreID == "" {
		return fmt.Errorf("%w: store, subject and requester are required", store.ErrValidation)
	}
	switch input.Kind {
	case models.KindTicketApproval:
		if input.Proposed.TicketClose == nil {
			return fmt.Errorf("%w: ticket_close value is required", store.ErrValidation)
		}
	case models.KindTicketReopenRequest:
		if input.Proposed.Reopen == nil || strings.TrimSpace(input.Proposed.Reopen.Reason) == "" {
			return fmt.Errorf("%w: reopen reason is required", store.ErrValidation)
		}
	case models.KindCashTransactionApproval:
		if input.Proposed.Cash == nil || input.Proposed.Cash.TransactionID == "" {
			return fmt.Errorf("%w: cash transaction id is required", store.ErrValidation)
		}
	case models.KindCashTransactionChange:
		change := input.Proposed.CashChange
		if change == nil {
			return fmt.Errorf("%w: cash change value is required", store.ErrValidation)
		}
		if !change.IsDeletionRequest && change.NewAmount < 0 {
			return fmt.Errorf("%w: amount must not be negative", store.ErrValidation)
		}
	case models.KindInventoryApproval:
		inv := input.Proposed.Inventory
		if inv == nil || inv.ItemID == "" || inv.Quantity == 0 {
			return fmt.Errorf("%w: item and quantity are required", store.ErrValidation)
		}
	case models.KindAttendanceChange:
		att := input.Proposed.Attendance
		if att == nil || (att.NewCheckIn == nil && att.NewCheckOut == nil) {
			return fmt.Errorf("%w: a proposed check-in or check-out is required", store.ErrValidation)
		}
		if att.NewCheckIn != nil && att.NewCheckOut != nil && !att.NewCheckOut.After(*att.NewCheckIn) {
			return fmt.Errorf("%w: check-out must be after check-in", store.ErrValidation)
		}
	}
	return nil
}

// CheckDecide enforces the decision rules on a fetched request. The store
// still applies the transition conditionally, so a stale read here can only
// produce an ErrInvalidState from the conditional update, never a double
// resolution.
func CheckDecide(req models.ChangeRequest, reviewer models.Actor, outcome, comment string) error {
	if outcome != models.OutcomeApprove && outcome != models.OutcomeReject {
		return fmt.Errorf("%w: outcome must be approve or reject", store.ErrValidation)
	}
	if !store.ValidRequestTransition(outcome, req.Status) {
		return fmt.Errorf("%w: request already %s", store.ErrInvalidState, req.Status)
	}
	// Self-approval is rejected for every kind regardless of role.
	if reviewer.EmployeeID == req.RequesterID {
		return fmt.Errorf("%w: requester may not review their own request", store.ErrForbidden)
	}
	if !CanReview(req.Kind, reviewer) {
		return fmt.Errorf("%w: role may not review %s requests", store.ErrForbidden, req.Kind)
	}
	if outcome == models.OutcomeReject && strings.TrimSpace(comment) == "" {
		return fmt.Errorf("%w: a rejection comment is required", store.ErrValidation)
	}
	return nil
}

// TotalHours recomputes a shift's worked hours from its check-in/out pair.
func TotalHours(checkIn, checkOut time.Time) float64 {
	return checkOut.Sub(checkIn).Hours()
}
