package quorum

import (
	"errors"
	"testing"

	"github.com/onglesrivieres/salon360-sub003/internal/models"
	"github.com/onglesrivieres/salon360-sub003/internal/store"
)

func TestEligibleVotersExcludesParties(t *testing.T) {
	onShift := []string{"t1", "t2", "reported", "reporter", "t3", "t1", ""}
	got := EligibleVoters(onShift, "reported", "reporter")
	want := []string{"t1", "t2", "t3"}
	if len(got) != len(want) {
		t.Fatalf("eligible=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("eligible=%v, want %v", got, want)
		}
	}
}

func TestThresholdMajority(t *testing.T) {
	cases := []struct {
		eligible int
		want     int
	}{
		{2, 2},
		{3, 2},
		{4, 3},
		{5, 3},
		{6, 4},
		{1, 1}, // floor of 2 clamps back down to the voter count
	}
	for _, tt := range cases {
		if got := Threshold(tt.eligible, ""); got != tt.want {
			t.Fatalf("Threshold(%d)=%d, want %d", tt.eligible, got, tt.want)
		}
	}
}

func TestThresholdOverrideRule(t *testing.T) {
	// Store rule: larger shifts need four confirmations, small ones two.
	rule := "eligible > 6 ? 4 : 2"
	if got := Threshold(8, rule); got != 4 {
		t.Fatalf("Threshold(8, rule)=%d, want 4", got)
	}
	if got := Threshold(5, rule); got != 2 {
		t.Fatalf("Threshold(5, rule)=%d, want 2", got)
	}
	// Overrides never undercut the quorum floor.
	if got := Threshold(5, "1"); got != 2 {
		t.Fatalf("Threshold(5, \"1\")=%d, want 2", got)
	}
	// A broken rule falls back to the majority formula.
	if got := Threshold(5, "eligible +"); got != 3 {
		t.Fatalf("Threshold(5, broken)=%d, want 3", got)
	}
}

func TestOutcomeEarlyExit(t *testing.T) {
	// Five eligible voters, threshold three: confirm, confirm, deny.
	eligible, threshold := 5, 3
	if got := Outcome(eligible, threshold, 1, 1); got != models.ViolationCollecting {
		t.Fatalf("after first confirm: %s, want collecting_responses", got)
	}
	if got := Outcome(eligible, threshold, 2, 2); got != models.ViolationCollecting {
		t.Fatalf("after second confirm: %s, want collecting_responses", got)
	}
	if got := Outcome(eligible, threshold, 3, 3); got != models.ViolationPendingApproval {
		t.Fatalf("after third confirm: %s, want pending_approval", got)
	}
}

func TestOutcomeFullRoundWithoutQuorum(t *testing.T) {
	// Every voter responded but the threshold was never met: the report
	// still reaches a manager decision point.
	if got := Outcome(3, 3, 3, 1); got != models.ViolationPendingApproval {
		t.Fatalf("full round: %s, want pending_approval", got)
	}
}

func TestCheckVote(t *testing.T) {
	report := models.ViolationReport{
		Status:           models.ViolationCollecting,
		EligibleVoterIDs: []string{"t1", "t2"},
		Votes:            []models.Vote{{VoterID: "t1", Confirms: true}},
	}

	if err := CheckVote(report, "t2"); err != nil {
		t.Fatalf("eligible fresh voter rejected: %v", err)
	}
	if err := CheckVote(report, "t1"); !errors.Is(err, store.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if err := CheckVote(report, "t9"); !errors.Is(err, store.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}

	report.Status = models.ViolationPendingApproval
	if err := CheckVote(report, "t2"); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState once voting closed, got %v", err)
	}
}

func TestCheckDecision(t *testing.T) {
	report := models.ViolationReport{
		Status:             models.ViolationPendingApproval,
		ReportedEmployeeID: "t1",
	}
	manager := models.Actor{EmployeeID: "m1", Roles: []string{models.RoleManager}}

	if err := CheckDecision(report, manager, models.DecisionConfirmed, models.ActionWarning, "confirmed by floor staff"); err != nil {
		t.Fatalf("valid decision rejected: %v", err)
	}
	if err := CheckDecision(report, manager, models.DecisionConfirmed, models.ActionWarning, "  "); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty notes, got %v", err)
	}

	tech := models.Actor{EmployeeID: "t5", Roles: []string{models.RoleTechnician}}
	if err := CheckDecision(report, tech, models.DecisionConfirmed, models.ActionNone, "x"); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for technician, got %v", err)
	}

	// Expired reports may still receive a management decision.
	report.Status = models.ViolationExpired
	if err := CheckDecision(report, manager, models.DecisionNoViolation, models.ActionNone, "expired without quorum"); err != nil {
		t.Fatalf("decision on expired report rejected: %v", err)
	}

	report.Status = models.ViolationApproved
	if err := CheckDecision(report, manager, models.DecisionConfirmed, models.ActionNone, "x"); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on decided report, got %v", err)
	}
}

func TestReporterRedaction(t *testing.T) {
	report := models.ViolationReport{
		ReportedEmployeeID: "t1",
		ReporterEmployeeID: "t2",
	}

	manager := models.Actor{EmployeeID: "m1", Roles: []string{models.RoleManager}}
	if got := Redact(report, manager); got.ReporterEmployeeID != "t2" {
		t.Fatalf("manager should see reporter, got %q", got.ReporterEmployeeID)
	}

	// Supervisors take the strict rule: no reporter identity.
	supervisor := models.Actor{EmployeeID: "s1", Roles: []string{models.RoleSupervisor}}
	if got := Redact(report, supervisor); got.ReporterEmployeeID != models.AnonymousReporter {
		t.Fatalf("supervisor should not see reporter, got %q", got.ReporterEmployeeID)
	}

	// The reported employee never sees the reporter, whatever their role.
	reportedAdmin := models.Actor{EmployeeID: "t1", Roles: []string{models.RoleAdmin}}
	if got := Redact(report, reportedAdmin); got.ReporterEmployeeID != models.AnonymousReporter {
		t.Fatalf("reported employee should not see reporter, got %q", got.ReporterEmployeeID)
	}
}
