package approval

import (
	"errors"
	"testing"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/models"
	"github.com/onglesrivieres/salon360-sub003/internal/store"
)

func TestDeadlineOnlyForTicketApprovals(t *testing.T) {
	createdAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	deadline := Deadline(models.KindTicketApproval, createdAt)
	if deadline == nil {
		t.Fatal("expected ticket approvals to carry a deadline")
	}
	if want := createdAt.Add(48 * time.Hour); !deadline.Equal(want) {
		t.Fatalf("deadline=%v, want %v", deadline, want)
	}

	for _, kind := range []string{
		models.KindTicketReopenRequest,
		models.KindCashTransactionApproval,
		models.KindCashTransactionChange,
		models.KindInventoryApproval,
		models.KindAttendanceChange,
	} {
		if d := Deadline(kind, createdAt); d != nil {
			t.Fatalf("kind %s should never auto-resolve, got deadline %v", kind, d)
		}
	}
}

func TestCheckDecideSelfApproval(t *testing.T) {
	req := models.ChangeRequest{
		Kind:        models.KindAttendanceChange,
		RequesterID: "emp-1",
		Status:      models.StatusPending,
	}
	// The requester is rejected even with the strongest role.
	owner := models.Actor{EmployeeID: "emp-1", Roles: []string{models.RoleOwner}}

	err := CheckDecide(req, owner, models.OutcomeApprove, "")
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCheckDecideRoleGate(t *testing.T) {
	req := models.ChangeRequest{
		Kind:        models.KindCashTransactionApproval,
		RequesterID: "emp-1",
		Status:      models.StatusPending,
	}
	tech := models.Actor{EmployeeID: "emp-2", Roles: []string{models.RoleTechnician}}
	if err := CheckDecide(req, tech, models.OutcomeApprove, ""); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for technician, got %v", err)
	}

	manager := models.Actor{EmployeeID: "emp-2", Roles: []string{models.RoleManager}}
	if err := CheckDecide(req, manager, models.OutcomeApprove, ""); err != nil {
		t.Fatalf("expected manager approval to pass, got %v", err)
	}
}

func TestCheckDecideRejectionNeedsComment(t *testing.T) {
	req := models.ChangeRequest{
		Kind:        models.KindAttendanceChange,
		RequesterID: "emp-1",
		Status:      models.StatusPending,
	}
	manager := models.Actor{EmployeeID: "emp-2", Roles: []string{models.RoleManager}}

	if err := CheckDecide(req, manager, models.OutcomeReject, "   "); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank comment, got %v", err)
	}
	if err := CheckDecide(req, manager, models.OutcomeReject, "times do not match the camera log"); err != nil {
		t.Fatalf("expected reject with comment to pass, got %v", err)
	}
}

func TestCheckDecideTerminalState(t *testing.T) {
	manager := models.Actor{EmployeeID: "emp-2", Roles: []string{models.RoleManager}}
	for _, status := range []string{
		models.StatusApproved,
		models.StatusRejected,
		models.StatusAutoApproved,
		models.StatusExpired,
	} {
		req := models.ChangeRequest{
			Kind:        models.KindAttendanceChange,
			RequesterID: "emp-1",
			Status:      status,
		}
		if err := CheckDecide(req, manager, models.OutcomeApprove, ""); !errors.Is(err, store.ErrInvalidState) {
			t.Fatalf("status %s: expected ErrInvalidState, got %v", status, err)
		}
	}
}

func TestCheckSubmitAttendance(t *testing.T) {
	checkIn := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	checkOut := checkIn.Add(-time.Hour)
	err := CheckSubmit(store.CreateRequestInput{
		Kind:        models.KindAttendanceChange,
		StoreID:     "store-1",
		SubjectID:   "shift-1",
		RequesterID: "emp-1",
		Proposed: models.ProposedChange{
			Attendance: &models.AttendanceChange{NewCheckIn: &checkIn, NewCheckOut: &checkOut},
		},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for inverted times, got %v", err)
	}
}

func TestTotalHours(t *testing.T) {
	checkIn := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	checkOut := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	if got := TotalHours(checkIn, checkOut); got != 7.5 {
		t.Fatalf("TotalHours=%v, want 7.5", got)
	}
}
