package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/models"
	"github.com/onglesrivieres/salon360-sub003/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

func TestDecideRequestSingleWinner(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedEmployee(t, ctx, pool, "tech-1", models.RoleTechnician, "store-1")
	seedEmployee(t, ctx, pool, "mgr-1", models.RoleManager, "store-1")
	seedEmployee(t, ctx, pool, "mgr-2", models.RoleManager, "store-1")
	ticketID := seedTicket(t, ctx, pool, "store-1", "tech-1")

	request := submitTicketApproval(t, ctx, st, "store-1", ticketID, "tech-1")

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, reviewer := range []string{"mgr-1", "mgr-2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := st.DecideRequest(ctx, store.DecideRequestInput{
				RequestID:  request.RequestID,
				ReviewerID: id,
				Outcome:    models.OutcomeApprove,
				DecidedAt:  time.Now().UTC(),
			})
			results <- err
		}(reviewer)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrInvalidState):
			conflicts++
		default:
			t.Fatalf("unexpected decide error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner, got wins=%d conflicts=%d", wins, conflicts)
	}

	var approvalStatus string
	row := pool.QueryRow(ctx, `SELECT approval_status FROM tickets WHERE ticket_id = $1`, ticketID)
	if err := row.Scan(&approvalStatus); err != nil {
		t.Fatalf("read ticket: %v", err)
	}
	if approvalStatus != "approved" {
		t.Fatalf("expected ticket approved, got %q", approvalStatus)
	}
}

func TestCreateRequestDuplicatePending(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedEmployee(t, ctx, pool, "tech-1", models.RoleTechnician, "store-1")
	ticketID := seedTicket(t, ctx, pool, "store-1", "tech-1")

	submitTicketApproval(t, ctx, st, "store-1", ticketID, "tech-1")
	_, err := st.CreateRequest(ctx, store.CreateRequestInput{
		Kind:        models.KindTicketApproval,
		StoreID:     "store-1",
		SubjectID:   ticketID,
		RequesterID: "tech-1",
		Proposed: models.ProposedChange{
			TicketClose: &models.TicketCloseValue{ClosedAt: time.Now().UTC()},
		},
		CreatedAt: time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestSweepTicketApprovalsAutoApproves(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedEmployee(t, ctx, pool, "tech-1", models.RoleTechnician, "store-1")
	ticketID := seedTicket(t, ctx, pool, "store-1", "tech-1")

	created := time.Now().UTC().Add(-49 * time.Hour)
	deadline := created.Add(48 * time.Hour)
	request, err := st.CreateRequest(ctx, store.CreateRequestInput{
		Kind:        models.KindTicketApproval,
		StoreID:     "store-1",
		SubjectID:   ticketID,
		RequesterID: "tech-1",
		Proposed: models.ProposedChange{
			TicketClose: &models.TicketCloseValue{ClosedAt: created},
		},
		Deadline:  &deadline,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	count, err := st.SweepTicketApprovals(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 swept request, got %d", count)
	}

	swept, err := st.GetRequest(ctx, request.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if swept.Status != models.StatusAutoApproved {
		t.Fatalf("expected auto_approved, got %q", swept.Status)
	}
	if swept.ReviewerID != nil {
		t.Fatalf("auto approval must not record a reviewer, got %q", *swept.ReviewerID)
	}

	// A second pass finds nothing; the deadline fires at most once.
	count, err = st.SweepTicketApprovals(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected idle second sweep, got %d", count)
	}
}

func TestCastVoteThresholdFlip(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	voters := []string{"tech-1", "tech-2", "tech-3", "tech-4", "tech-5"}
	for _, id := range voters {
		seedEmployee(t, ctx, pool, id, models.RoleTechnician, "store-1")
	}

	report, err := st.CreateReport(ctx, store.CreateReportInput{
		StoreID:            "store-1",
		ReportedEmployeeID: "reported",
		ReporterEmployeeID: "reporter",
		Description:        "skipped the rotation queue",
		IncidentDate:       "2026-08-30",
		EligibleVoterIDs:   voters,
		Threshold:          3,
		ExpiresAt:          time.Now().UTC().Add(time.Hour),
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}

	for i, voter := range voters[:2] {
		updated, err := st.CastVote(ctx, store.CastVoteInput{
			ReportID: report.ReportID,
			VoterID:  voter,
			Confirms: true,
			VotedAt:  time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
		if updated.Status != models.ViolationCollecting {
			t.Fatalf("report flipped before threshold at vote %d", i)
		}
	}

	updated, err := st.CastVote(ctx, store.CastVoteInput{
		ReportID: report.ReportID,
		VoterID:  voters[2],
		Confirms: true,
		VotedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("third vote: %v", err)
	}
	if updated.Status != models.ViolationPendingApproval {
		t.Fatalf("expected pending_approval after third confirmation, got %q", updated.Status)
	}

	// Voting is closed once the report reaches review.
	_, err = st.CastVote(ctx, store.CastVoteInput{
		ReportID: report.ReportID,
		VoterID:  voters[3],
		Confirms: true,
		VotedAt:  time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState after flip, got %v", err)
	}
}

func TestCastVoteDuplicate(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	report, err := st.CreateReport(ctx, store.CreateReportInput{
		StoreID:            "store-1",
		ReportedEmployeeID: "reported",
		ReporterEmployeeID: "reporter",
		Description:        "queue skip",
		IncidentDate:       "2026-08-30",
		EligibleVoterIDs:   []string{"tech-1", "tech-2", "tech-3"},
		Threshold:          2,
		ExpiresAt:          time.Now().UTC().Add(time.Hour),
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}

	if _, err := st.CastVote(ctx, store.CastVoteInput{
		ReportID: report.ReportID,
		VoterID:  "tech-1",
		Confirms: false,
		VotedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	_, err = st.CastVote(ctx, store.CastVoteInput{
		ReportID: report.ReportID,
		VoterID:  "tech-1",
		Confirms: true,
		VotedAt:  time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
}

func TestSweepExpiredReports(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	report, err := st.CreateReport(ctx, store.CreateReportInput{
		StoreID:            "store-1",
		ReportedEmployeeID: "reported",
		ReporterEmployeeID: "reporter",
		Description:        "queue skip",
		IncidentDate:       "2026-08-30",
		EligibleVoterIDs:   []string{"tech-1", "tech-2"},
		Threshold:          2,
		ExpiresAt:          time.Now().UTC().Add(-time.Minute),
		CreatedAt:          time.Now().UTC().Add(-61 * time.Minute),
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}

	count, err := st.SweepExpiredReports(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expired report, got %d", count)
	}

	expired, err := st.GetReport(ctx, report.ReportID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if expired.Status != models.ViolationExpired {
		t.Fatalf("expected expired, got %q", expired.Status)
	}

	// Management may still decide an expired report.
	decided, err := st.DecideReport(ctx, store.DecideReportInput{
		ReportID:   report.ReportID,
		ReviewerID: "mgr-1",
		Decision:   models.DecisionNoViolation,
		Action:     models.ActionNone,
		Notes:      "window lapsed without quorum",
		DecidedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("decide expired report: %v", err)
	}
	if decided.Status != models.ViolationRejected {
		t.Fatalf("expected rejected, got %q", decided.Status)
	}
}

func TestEditCashTransactionKeepsStatus(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	txn, err := st.CreateCashTransaction(ctx, store.CreateCashTransactionInput{
		StoreID:     "store-1",
		Date:        "2026-08-31",
		Type:        models.CashOut,
		Amount:      30,
		Description: "supply run",
		CreatedBy:   "cashier-1",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	if _, err := pool.Exec(ctx, `
		UPDATE cash_transactions SET status = 'approved', approved_by = 'mgr-1' WHERE transaction_id = $1
	`, txn.TransactionID); err != nil {
		t.Fatalf("approve transaction: %v", err)
	}

	updated, err := st.EditCashTransaction(ctx, store.EditCashTransactionInput{
		TransactionID:  txn.TransactionID,
		EditorID:       "cashier-1",
		NewAmount:      35,
		NewDescription: "supply run plus parking",
		Reason:         "missed the parking receipt",
		EditedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("edit transaction: %v", err)
	}
	if updated.Status != models.CashApproved {
		t.Fatalf("edit must not change status, got %q", updated.Status)
	}
	if updated.Amount != 35 {
		t.Fatalf("expected amount 35, got %v", updated.Amount)
	}

	edits, err := st.ListEditHistory(ctx, txn.TransactionID)
	if err != nil {
		t.Fatalf("list edits: %v", err)
	}
	if len(edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(edits))
	}
	if edits[0].OldAmount != 30 || edits[0].NewAmount != 35 {
		t.Fatalf("unexpected edit row: %+v", edits[0])
	}
}

func TestDecideRequestRejectCashTransaction(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	txn, err := st.CreateCashTransaction(ctx, store.CreateCashTransactionInput{
		StoreID:     "store-1",
		Date:        "2026-08-31",
		Type:        models.CashIn,
		Amount:      50,
		Description: "float top-up",
		CreatedBy:   "cashier-1",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	request, err := st.CreateRequest(ctx, store.CreateRequestInput{
		Kind:        models.KindCashTransactionApproval,
		StoreID:     "store-1",
		SubjectID:   txn.TransactionID,
		RequesterID: "cashier-1",
		Proposed: models.ProposedChange{
			Cash: &models.CashApprovalValue{TransactionID: txn.TransactionID},
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	decided, err := st.DecideRequest(ctx, store.DecideRequestInput{
		RequestID:  request.RequestID,
		ReviewerID: "mgr-1",
		Outcome:    models.OutcomeReject,
		Comment:    "no receipt attached",
		DecidedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("decide request: %v", err)
	}
	if decided.Status != models.StatusRejected {
		t.Fatalf("expected rejected, got %q", decided.Status)
	}

	loaded, err := st.GetCashTransaction(ctx, txn.TransactionID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if loaded.Status != models.CashRejected {
		t.Fatalf("expected transaction rejected, got %q", loaded.Status)
	}
	if loaded.ApprovedBy == nil || *loaded.ApprovedBy != "mgr-1" {
		t.Fatalf("expected reviewer mgr-1 on transaction, got %v", loaded.ApprovedBy)
	}

	totals, err := st.LedgerTotals(ctx, "store-1", "2026-08-31")
	if err != nil {
		t.Fatalf("ledger totals: %v", err)
	}
	if totals.ApprovedCashIn != 0 {
		t.Fatalf("rejected transaction must not count as cash in, got %v", totals.ApprovedCashIn)
	}
}

func TestDecideRequestAttendanceRecomputesHours(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	shiftID := uuid.NewString()
	checkIn := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	checkOut := checkIn.Add(8 * time.Hour)
	if _, err := pool.Exec(ctx, `
		INSERT INTO attendance_shifts (shift_id, store_id, employee_id, date, check_in, check_out, total_hours)
		VALUES ($1, 'store-1', 'tech-1', '2026-08-31', $2, $3, 8)
	`, shiftID, checkIn, checkOut); err != nil {
		t.Fatalf("seed shift: %v", err)
	}

	newCheckOut := checkIn.Add(7*time.Hour + 30*time.Minute)
	request, err := st.CreateRequest(ctx, store.CreateRequestInput{
		Kind:        models.KindAttendanceChange,
		StoreID:     "store-1",
		SubjectID:   shiftID,
		RequesterID: "tech-1",
		Proposed: models.ProposedChange{
			Attendance: &models.AttendanceChange{NewCheckOut: &newCheckOut},
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	if _, err := st.DecideRequest(ctx, store.DecideRequestInput{
		RequestID:  request.RequestID,
		ReviewerID: "mgr-1",
		Outcome:    models.OutcomeApprove,
		DecidedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("decide request: %v", err)
	}

	var gotIn, gotOut time.Time
	var hours float64
	row := pool.QueryRow(ctx, `
		SELECT check_in, check_out, total_hours FROM attendance_shifts WHERE shift_id = $1
	`, shiftID)
	if err := row.Scan(&gotIn, &gotOut, &hours); err != nil {
		t.Fatalf("load shift: %v", err)
	}
	if !gotIn.Equal(checkIn) {
		t.Fatalf("check_in must survive a check_out-only change, got %v", gotIn)
	}
	if !gotOut.Equal(newCheckOut) {
		t.Fatalf("expected check_out %v, got %v", newCheckOut, gotOut)
	}
	if hours != 7.5 {
		t.Fatalf("expected 7.5 total hours, got %v", hours)
	}
}

func TestLedgerDayCarryForward(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	_, err := st.RecordClosing(ctx, store.RecordCountInput{
		StoreID:       "store-1",
		Date:          "2026-08-30",
		Denominations: models.DenominationCounts{Bill20: 5, Bill10: 2},
		ActorID:       "mgr-1",
		At:            time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("record closing: %v", err)
	}

	previous, err := st.GetPreviousClosing(ctx, "store-1", "2026-08-31")
	if err != nil {
		t.Fatalf("previous closing: %v", err)
	}
	if previous == nil || previous.Bill20 != 5 || previous.Bill10 != 2 {
		t.Fatalf("unexpected previous closing: %+v", previous)
	}
}

func TestLoginAndSession(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedEmployee(t, ctx, pool, "mgr-1", models.RoleManager, "store-1")

	session, err := st.Login(ctx, store.LoginInput{EmployeeID: "mgr-1", PIN: "1234", StoreID: "store-1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Role != models.RoleManager {
		t.Fatalf("expected Manager, got %q", session.Role)
	}

	loaded, err := st.GetSession(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if loaded.EmployeeID != "mgr-1" {
		t.Fatalf("expected mgr-1, got %q", loaded.EmployeeID)
	}

	if _, err := st.Login(ctx, store.LoginInput{EmployeeID: "mgr-1", PIN: "0000"}); !errors.Is(err, store.ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
}

func TestLoginHonorsSessionTTL(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedEmployee(t, ctx, pool, "mgr-1", models.RoleManager, "store-1")
	st.SetSessionTTL(time.Hour)

	session, err := st.Login(ctx, store.LoginInput{EmployeeID: "mgr-1", PIN: "1234", StoreID: "store-1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	remaining := time.Until(session.ExpiresAt)
	if remaining > time.Hour || remaining < 55*time.Minute {
		t.Fatalf("expected session to expire in about an hour, got %v", remaining)
	}
}

func submitTicketApproval(t *testing.T, ctx context.Context, st *Store, storeID, ticketID, requesterID string) models.ChangeRequest {
	t.Helper()
	request, err := st.CreateRequest(ctx, store.CreateRequestInput{
		Kind:        models.KindTicketApproval,
		StoreID:     storeID,
		SubjectID:   ticketID,
		RequesterID: requesterID,
		Proposed: models.ProposedChange{
			TicketClose: &models.TicketCloseValue{ClosedAt: time.Now().UTC()},
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return request
}

func seedEmployee(t *testing.T, ctx context.Context, pool *pgxpool.Pool, employeeID, role, storeID string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO employees (employee_id, role, pin_hash, active) VALUES ($1, $2, $3, TRUE)
	`, employeeID, role, hash); err != nil {
		t.Fatalf("insert employee: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO employee_stores (employee_id, store_id) VALUES ($1, $2)
	`, employeeID, storeID); err != nil {
		t.Fatalf("map employee store: %v", err)
	}
}

func seedTicket(t *testing.T, ctx context.Context, pool *pgxpool.Pool, storeID, employeeID string) string {
	t.Helper()
	ticketID := uuid.NewString()
	if _, err := pool.Exec(ctx, `
		INSERT INTO tickets (ticket_id, store_id, employee_id, total, cash_sales, cash_tip, approval_status)
		VALUES ($1, $2, $3, 120, 100, 20, 'pending_approval')
	`, ticketID, storeID, employeeID); err != nil {
		t.Fatalf("insert ticket: %v", err)
	}
	return ticketID
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return NewStore(pool), pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
