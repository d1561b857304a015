package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/models"
	"github.com/onglesrivieres/salon360-sub003/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const cashColumns = `transaction_id, store_id, date, type, amount, description, category,
	created_by, status, approved_by, created_at`

func (s *Store) CreateCashTransaction(ctx context.Context, input store.CreateCashTransactionInput) (models.CashTransaction, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO cash_transactions (
			transaction_id, store_id, date, type, amount, description, category,
			created_by, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+cashColumns+`
	`, uuid.NewString(), input.StoreID, input.Date, input.Type, input.Amount,
		input.Description, input.Category, input.CreatedBy, models.CashPendingApproval, createdAt)
	return scanCashTransaction(row)
}

func (s *Store) GetCashTransaction(ctx context.Context, transactionID string) (models.CashTransaction, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+cashColumns+`
		FROM cash_transactions
		WHERE transaction_id = $1
	`, transactionID)
	txn, err := scanCashTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CashTransaction{}, store.ErrNotFound
		}
		return models.CashTransaction{}, err
	}
	return txn, nil
}

// EditCashTransaction amends the row in place and appends a history entry.
// The approval status is left untouched: an edit never re-opens review.
func (s *Store) EditCashTransaction(ctx context.Context, input store.EditCashTransactionInput) (models.CashTransaction, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.CashTransaction{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+cashColumns+`
		FROM cash_transactions
		WHERE transaction_id = $1
		FOR UPDATE
	`, input.TransactionID)
	current, err := scanCashTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrNotFound
		}
		return models.CashTransaction{}, err
	}

	editedAt := input.EditedAt
	if editedAt.IsZero() {
		editedAt = time.Now().UTC()
	}

	row = tx.QueryRow(ctx, `
		UPDATE cash_transactions
		SET amount = $1,
			description = $2,
			category = $3
		WHERE transaction_id = $4
		RETURNING `+cashColumns+`
	`, input.NewAmount, input.NewDescription, input.NewCategory, input.TransactionID)
	updated, err := scanCashTransaction(row)
	if err != nil {
		return models.CashTransaction{}, err
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO cash_transaction_edits (
			edit_id, transaction_id, editor_id, old_amount, new_amount,
			old_description, new_description, old_category, new_category, reason, edited_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, uuid.NewString(), input.TransactionID, input.EditorID,
		current.Amount, input.NewAmount, current.Description, input.NewDescription,
		current.Category, input.NewCategory, input.Reason, editedAt); err != nil {
		return models.CashTransaction{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.CashTransaction{}, err
	}
	return updated, nil
}

func (s *Store) ListEditHistory(ctx context.Context, transactionID string) ([]models.CashEdit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT edit_id, transaction_id, editor_id, old_amount, new_amount,
			old_description, new_description, old_category, new_category, reason, edited_at
		FROM cash_transaction_edits
		WHERE transaction_id = $1
		ORDER BY edited_at ASC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edits []models.CashEdit
	for rows.Next() {
		var edit models.CashEdit
		if err := rows.Scan(&edit.EditID, &edit.TransactionID, &edit.EditorID,
			&edit.OldAmount, &edit.NewAmount, &edit.OldDescription, &edit.NewDescription,
			&edit.OldCategory, &edit.NewCategory, &edit.Reason, &edit.EditedAt); err != nil {
			return nil, err
		}
		edits = append(edits, edit)
	}
	return edits, rows.Err()
}

func (s *Store) RecordOpening(ctx context.Context, input store.RecordCountInput) (models.CashLedgerDay, error) {
	return s.recordCount(ctx, input, "opening_json")
}

func (s *Store) RecordClosing(ctx context.Context, input store.RecordCountInput) (models.CashLedgerDay, error) {
	return s.recordCount(ctx, input, "closing_json")
}

func (s *Store) recordCount(ctx context.Context, input store.RecordCountInput, column string) (models.CashLedgerDay, error) {
	countsJSON, err := json.Marshal(input.Denominations)
	if err != nil {
		return models.CashLedgerDay{}, err
	}
	at := input.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO cash_ledger_days (store_id, date, `+column+`, notes, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $6)
		ON CONFLICT (store_id, date) DO UPDATE
		SET `+column+` = EXCLUDED.`+column+`,
			notes = EXCLUDED.notes,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
		RETURNING store_id, date, opening_json, closing_json, notes, created_by, updated_by, created_at, updated_at
	`, input.StoreID, input.Date, countsJSON, input.Notes, input.ActorID, at)
	return scanLedgerDay(row)
}

func (s *Store) GetLedgerDay(ctx context.Context, storeID, date string) (models.CashLedgerDay, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT store_id, date, opening_json, closing_json, notes, created_by, updated_by, created_at, updated_at
		FROM cash_ledger_days
		WHERE store_id = $1 AND date = $2
	`, storeID, date)
	day, err := scanLedgerDay(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CashLedgerDay{}, false, nil
		}
		return models.CashLedgerDay{}, false, err
	}
	return day, true, nil
}

func (s *Store) GetPreviousClosing(ctx context.Context, storeID, date string) (*models.DenominationCounts, error) {
	var closingJSON []byte
	row := s.pool.QueryRow(ctx, `
		SELECT closing_json
		FROM cash_ledger_days
		WHERE store_id = $1 AND date < $2 AND closing_json IS NOT NULL
		ORDER BY date DESC
		LIMIT 1
	`, storeID, date)
	if err := row.Scan(&closingJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var counts models.DenominationCounts
	if err := json.Unmarshal(closingJSON, &counts); err != nil {
		return nil, err
	}
	return &counts, nil
}

// LedgerTotals is computed from live rows at read time, so a variance is
// always against the current approval state of the day's transactions.
func (s *Store) LedgerTotals(ctx context.Context, storeID, date string) (store.LedgerTotals, error) {
	var totals store.LedgerTotals
	row := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(cash_sales + cash_tip), 0)
		FROM tickets
		WHERE store_id = $1 AND closed_at IS NOT NULL AND closed_at::date = $2::date
	`, storeID, date)
	if err := row.Scan(&totals.ExpectedFromSales); err != nil {
		return store.LedgerTotals{}, err
	}
	row = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE type = 'cash_in'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'cash_out'), 0)
		FROM cash_transactions
		WHERE store_id = $1 AND date = $2 AND status = 'approved'
	`, storeID, date)
	if err := row.Scan(&totals.ApprovedCashIn, &totals.ApprovedCashOut); err != nil {
		return store.LedgerTotals{}, err
	}
	return totals, nil
}

func scanCashTransaction(row rowScanner) (models.CashTransaction, error) {
	var txn models.CashTransaction
	var approvedBy sql.NullString
	if err := row.Scan(&txn.TransactionID, &txn.StoreID, &txn.Date, &txn.Type, &txn.Amount,
		&txn.Description, &txn.Category, &txn.CreatedBy, &txn.Status, &approvedBy, &txn.CreatedAt); err != nil {
		return models.CashTransaction{}, err
	}
	txn.ApprovedBy = nullStringPtr(approvedBy)
	return txn, nil
}

func scanLedgerDay(row rowScanner) (models.CashLedgerDay, error) {
	var day models.CashLedgerDay
	var openingJSON, closingJSON []byte
	var notes sql.NullString
	if err := row.Scan(&day.StoreID, &day.Date, &openingJSON, &closingJSON, &notes,
		&day.CreatedBy, &day.UpdatedBy, &day.CreatedAt, &day.UpdatedAt); err != nil {
		return models.CashLedgerDay{}, err
	}
	day.Notes = notes.String
	if len(openingJSON) > 0 {
		day.Opening = &models.DenominationCounts{}
		if err := json.Unmarshal(openingJSON, day.Opening); err != nil {
			return models.CashLedgerDay{}, err
		}
	}
	if len(closingJSON) > 0 {
		day.Closing = &models.DenominationCounts{}
		if err := json.Unmarshal(closingJSON, day.Closing); err != nil {
			return models.CashLedgerDay{}, err
		}
	}
	return day, nil
}
