package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/approval"
	"github.com/onglesrivieres/salon360-sub003/internal/models"
	"github.com/onglesrivieres/salon360-sub003/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool       *pgxpool.Pool
	sessionTTL time.Duration
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, sessionTTL: defaultSessionTTL}
}

// SetSessionTTL overrides how long sessions issued by Login stay valid.
func (s *Store) SetSessionTTL(ttl time.Duration) {
	if ttl > 0 {
		s.sessionTTL = ttl
	}
}

const requestColumns = `request_id, kind, store_id, subject_id, requester_id, justification,
	proposed_json, status, reviewer_id, comment, created_at, resolved_at, deadline`

func (s *Store) CreateRequest(ctx context.Context, input store.CreateRequestInput) (models.ChangeRequest, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ChangeRequest{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// At most one open request per subject per kind.
	var exists bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM change_requests
			WHERE subject_id = $1 AND kind = $2 AND status = 'pending'
		)
	`, input.SubjectID, input.Kind)
	if err = row.Scan(&exists); err != nil {
		return models.ChangeRequest{}, err
	}
	if exists {
		err = fmt.Errorf("%w: a pending %s request already exists for this subject", store.ErrDuplicateRequest, input.Kind)
		return models.ChangeRequest{}, err
	}

	proposedJSON, err := json.Marshal(input.Proposed)
	if err != nil {
		return models.ChangeRequest{}, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	request := models.ChangeRequest{}
	row = tx.QueryRow(ctx, `
		INSERT INTO change_requests (
			request_id, kind, store_id, subject_id, requester_id, justification,
			proposed_json, status, created_at, deadline
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+requestColumns+`
	`, uuid.NewString(), input.Kind, input.StoreID, input.SubjectID, input.RequesterID,
		input.Justification, proposedJSON, models.StatusPending, createdAt, input.Deadline)
	if request, err = scanRequest(row); err != nil {
		// A concurrent submission can beat the pre-check; the partial
		// unique index turns it into a conflict here.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			err = fmt.Errorf("%w: a pending %s request already exists for this subject", store.ErrDuplicateRequest, input.Kind)
		}
		return models.ChangeRequest{}, err
	}

	if err = insertOutboxEvent(ctx, tx, input.StoreID, "request.submitted", map[string]interface{}{
		"request_id": request.RequestID,
		"kind":       request.Kind,
		"subject_id": request.SubjectID,
	}); err != nil {
		return models.ChangeRequest{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.ChangeRequest{}, err
	}
	return request, nil
}

func (s *Store) GetRequest(ctx context.Context, requestID string) (models.ChangeRequest, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM change_requests
		WHERE request_id = $1
	`, requestID)
	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChangeRequest{}, store.ErrNotFound
		}
		return models.ChangeRequest{}, err
	}
	return request, nil
}

func (s *Store) ListRequests(ctx context.Context, filter store.RequestFilter) ([]models.ChangeRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM change_requests WHERE 1=1`
	var args []interface{}
	if filter.StoreID != "" {
		args = append(args, filter.StoreID)
		query += fmt.Sprintf(" AND store_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.ChangeRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *Store) CountPendingRequests(ctx context.Context, storeID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, COUNT(1)
		FROM change_requests
		WHERE store_id = $1 AND status = 'pending'
		GROUP BY kind
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// DecideRequest flips the request out of pending and runs the kind's apply
// side effect in the same transaction: both land or neither does. The flip
// is conditional on status, so a concurrent decision or sweeper pass leaves
// exactly one winner.
func (s *Store) DecideRequest(ctx context.Context, input store.DecideRequestInput) (models.ChangeRequest, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ChangeRequest{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	status := models.StatusApproved
	if input.Outcome == models.OutcomeReject {
		status = models.StatusRejected
	}
	decidedAt := input.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		UPDATE change_requests
		SET status = $1,
			reviewer_id = $2,
			comment = NULLIF($3, ''),
			resolved_at = $4
		WHERE request_id = $5 AND status = 'pending'
		RETURNING `+requestColumns+`
	`, status, input.ReviewerID, input.Comment, decidedAt, input.RequestID)
	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = s.classifyMissingRequest(ctx, tx, input.RequestID)
			return models.ChangeRequest{}, err
		}
		return models.ChangeRequest{}, err
	}

	if status == models.StatusApproved {
		if err = applyChange(ctx, tx, request); err != nil {
			return models.ChangeRequest{}, err
		}
	} else {
		switch request.Kind {
		case models.KindTicketApproval:
			// A rejected ticket is flagged for a later admin review pass.
			if _, err = tx.Exec(ctx, `
				UPDATE tickets SET requires_admin_review = TRUE WHERE ticket_id = $1
			`, request.SubjectID); err != nil {
				return models.ChangeRequest{}, err
			}
		case models.KindCashTransactionApproval:
			// Rejection closes out the transaction itself, not just the request.
			var tag pgconn.CommandTag
			tag, err = tx.Exec(ctx, `
				UPDATE cash_transactions
				SET status = 'rejected',
					approved_by = $1
				WHERE transaction_id = $2 AND status = 'pending_approval'
			`, input.ReviewerID, request.SubjectID)
			if err != nil {
				return models.ChangeRequest{}, err
			}
			if tag.RowsAffected() == 0 {
				err = fmt.Errorf("%w: cash transaction is not awaiting approval", store.ErrInvalidState)
				return models.ChangeRequest{}, err
			}
		}
	}

	eventType := "request.approved"
	if status == models.StatusRejected {
		eventType = "request.rejected"
	}
	if err = insertOutboxEvent(ctx, tx, request.StoreID, eventType, map[string]interface{}{
		"request_id":    request.RequestID,
		"kind":          request.Kind,
		"comment":       input.Comment,
		"recipient_ids": []string{request.RequesterID},
	}); err != nil {
		return models.ChangeRequest{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.ChangeRequest{}, err
	}
	return request, nil
}

func (s *Store) classifyMissingRequest(ctx context.Context, tx pgx.Tx, requestID string) error {
	var status string
	row := tx.QueryRow(ctx, `SELECT status FROM change_requests WHERE request_id = $1`, requestID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: request already %s", store.ErrInvalidState, status)
}

func (s *Store) MarkTicketReviewed(ctx context.Context, ticketID, reviewerID string) (models.Ticket, error) {
	ticket := models.Ticket{}
	var closedAtNull sql.NullTime
	row := s.pool.QueryRow(ctx, `
		UPDATE tickets
		SET requires_admin_review = FALSE
		WHERE ticket_id = $1
		RETURNING ticket_id, store_id, employee_id, total, cash_sales, cash_tip, closed_at, approval_status, requires_admin_review
	`, ticketID)
	if err := row.Scan(&ticket.TicketID, &ticket.StoreID, &ticket.EmployeeID, &ticket.Total,
		&ticket.CashSales, &ticket.CashTip, &closedAtNull, &ticket.ApprovalStatus, &ticket.RequiresAdminReview); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrNotFound
		}
		return models.Ticket{}, err
	}
	ticket.ClosedAt = nullTimePtr(closedAtNull)
	return ticket, nil
}

// SweepTicketApprovals auto-approves ticket approvals whose review window
// has passed. Each flip is still conditional on pending: a human decision
// landing between the scan and the update simply wins.
func (s *Store) SweepTicketApprovals(ctx context.Context, now time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT request_id
		FROM change_requests
		WHERE kind = $1 AND status = 'pending' AND deadline IS NOT NULL AND deadline <= $2
		ORDER BY deadline ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $3
	`, models.KindTicketApproval, now, batchSize)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		row := tx.QueryRow(ctx, `
			UPDATE change_requests
			SET status = $1,
				reviewer_id = NULL,
				resolved_at = $2
			WHERE request_id = $3 AND status = 'pending'
			RETURNING `+requestColumns+`
		`, models.StatusAutoApproved, now, id)
		request, scanErr := scanRequest(row)
		if scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				continue
			}
			err = scanErr
			return 0, err
		}
		if err = applyChange(ctx, tx, request); err != nil {
			return 0, err
		}
		if err = insertOutboxEvent(ctx, tx, request.StoreID, "request.auto_approved", map[string]interface{}{
			"request_id":    request.RequestID,
			"kind":          request.Kind,
			"recipient_ids": []string{request.RequesterID},
		}); err != nil {
			return 0, err
		}
		processed++
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return processed, nil
}

// applyChange performs the kind-specific side effect for an approved
// request. An error aborts the surrounding transaction, leaving the request
// pending: never an approved request without its side effect, never a side
// effect without the approval.
func applyChange(ctx context.Context, tx pgx.Tx, request models.ChangeRequest) error {
	switch request.Kind {
	case models.KindTicketApproval:
		value := request.Proposed.TicketClose
		if value == nil {
			return fmt.Errorf("%w: ticket_close value missing", store.ErrValidation)
		}
		tag, err := tx.Exec(ctx, `
			UPDATE tickets
			SET approval_status = 'approved',
				closed_at = COALESCE(closed_at, $1)
			WHERE ticket_id = $2
		`, value.ClosedAt, request.SubjectID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: ticket gone", store.ErrNotFound)
		}
		return nil

	case models.KindTicketReopenRequest:
		tag, err := tx.Exec(ctx, `
			UPDATE tickets
			SET closed_at = NULL,
				approval_status = 'pending_approval',
				requires_admin_review = FALSE
			WHERE ticket_id = $1
		`, request.SubjectID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: ticket gone", store.ErrNotFound)
		}
		return nil

	case models.KindCashTransactionApproval:
		tag, err := tx.Exec(ctx, `
			UPDATE cash_transactions
			SET status = 'approved',
				approved_by = $1
			WHERE transaction_id = $2 AND status = 'pending_approval'
		`, request.ReviewerID, request.SubjectID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: cash transaction is not awaiting approval", store.ErrInvalidState)
		}
		return nil

	case models.KindCashTransactionChange:
		change := request.Proposed.CashChange
		if change == nil {
			return fmt.Errorf("%w: cash change value missing", store.ErrValidation)
		}
		if change.IsDeletionRequest {
			tag, err := tx.Exec(ctx, `
				DELETE FROM cash_transactions WHERE transaction_id = $1
			`, request.SubjectID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: cash transaction gone", store.ErrNotFound)
			}
			return nil
		}
		tag, err := tx.Exec(ctx, `
			UPDATE cash_transactions
			SET amount = $1,
				description = $2,
				category = $3
			WHERE transaction_id = $4
		`, change.NewAmount, change.NewDescription, change.NewCategory, request.SubjectID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: cash transaction gone", store.ErrNotFound)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO cash_transaction_edits (
				edit_id, transaction_id, editor_id, old_amount, new_amount,
				old_description, new_description, old_category, new_category, reason, edited_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, uuid.NewString(), request.SubjectID, request.RequesterID,
			change.OldAmount, change.NewAmount, change.OldDescription, change.NewDescription,
			change.OldCategory, change.NewCategory, request.Justification, time.Now().UTC())
		return err

	case models.KindInventoryApproval:
		inv := request.Proposed.Inventory
		if inv == nil {
			return fmt.Errorf("%w: inventory value missing", store.ErrValidation)
		}
		delta := inv.Quantity
		if inv.TransactionType == "out" {
			delta = -delta
		}
		tag, err := tx.Exec(ctx, `
			UPDATE inventory_items
			SET quantity = quantity + $1
			WHERE item_id = $2
		`, delta, inv.ItemID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: inventory item gone", store.ErrNotFound)
		}
		return nil

	case models.KindAttendanceChange:
		att := request.Proposed.Attendance
		if att == nil {
			return fmt.Errorf("%w: attendance value missing", store.ErrValidation)
		}
		var currentIn, currentOut sql.NullTime
		err := tx.QueryRow(ctx, `
			SELECT check_in, check_out FROM attendance_shifts WHERE shift_id = $1 FOR UPDATE
		`, request.SubjectID).Scan(&currentIn, &currentOut)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: shift gone", store.ErrNotFound)
			}
			return err
		}
		checkIn := att.NewCheckIn
		if checkIn == nil {
			checkIn = nullTimePtr(currentIn)
		}
		checkOut := att.NewCheckOut
		if checkOut == nil {
			checkOut = nullTimePtr(currentOut)
		}
		var totalHours float64
		if checkIn != nil && checkOut != nil {
			totalHours = approval.TotalHours(*checkIn, *checkOut)
		}
		_, err = tx.Exec(ctx, `
			UPDATE attendance_shifts
			SET check_in = $1,
				check_out = $2,
				total_hours = $3
			WHERE shift_id = $4
		`, checkIn, checkOut, totalHours, request.SubjectID)
		return err

	default:
		return fmt.Errorf("%w: unknown request kind %q", store.ErrValidation, request.Kind)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (models.ChangeRequest, error) {
	var request models.ChangeRequest
	var proposedJSON []byte
	var reviewerNull sql.NullString
	var commentNull sql.NullString
	var resolvedNull sql.NullTime
	var deadlineNull sql.NullTime
	if err := row.Scan(&request.RequestID, &request.Kind, &request.StoreID, &request.SubjectID,
		&request.RequesterID, &request.Justification, &proposedJSON, &request.Status,
		&reviewerNull, &commentNull, &request.CreatedAt, &resolvedNull, &deadlineNull); err != nil {
		return models.ChangeRequest{}, err
	}
	if len(proposedJSON) > 0 {
		if err := json.Unmarshal(proposedJSON, &request.Proposed); err != nil {
			return models.ChangeRequest{}, err
		}
	}
	request.ReviewerID = nullStringPtr(reviewerNull)
	request.Comment = nullStringPtr(commentNull)
	request.ResolvedAt = nullTimePtr(resolvedNull)
	request.Deadline = nullTimePtr(deadlineNull)
	return request, nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, storeID, eventType string, payload map[string]interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, store_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), storeID, eventType, payloadJSON, time.Now().UTC())
	return err
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
