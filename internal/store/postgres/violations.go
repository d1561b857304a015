package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/models"
	"github.com/onglesrivieres/salon360-sub003/internal/quorum"
	"github.com/onglesrivieres/salon360-sub003/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const reportColumns = `report_id, store_id, reported_employee_id, reporter_employee_id, description,
	incident_date, eligible_voter_ids, threshold, status, expires_at, created_at,
	info_requested_by, info_message, info_requested_at, info_submitted, info_submitted_at,
	decision, action, action_details, decision_notes, reviewer_id, decided_at`

func (s *Store) CreateReport(ctx context.Context, input store.CreateReportInput) (models.ViolationReport, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ViolationReport{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	expiresAt := input.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(quorum.VotingWindow)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO violation_reports (
			report_id, store_id, reported_employee_id, reporter_employee_id, description,
			incident_date, eligible_voter_ids, threshold, status, expires_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING `+reportColumns+`
	`, uuid.NewString(), input.StoreID, input.ReportedEmployeeID, input.ReporterEmployeeID,
		input.Description, input.IncidentDate, input.EligibleVoterIDs, input.Threshold,
		models.ViolationCollecting, expiresAt, createdAt)
	report, err := scanReport(row)
	if err != nil {
		return models.ViolationReport{}, err
	}

	if err = insertOutboxEvent(ctx, tx, input.StoreID, "violation.reported", map[string]interface{}{
		"report_id":     report.ReportID,
		"recipient_ids": report.EligibleVoterIDs,
	}); err != nil {
		return models.ViolationReport{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.ViolationReport{}, err
	}
	return report, nil
}

func (s *Store) GetReport(ctx context.Context, reportID string) (models.ViolationReport, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM violation_reports
		WHERE report_id = $1
	`, reportID)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ViolationReport{}, store.ErrNotFound
		}
		return models.ViolationReport{}, err
	}
	if report.Votes, err = s.listVotes(ctx, reportID); err != nil {
		return models.ViolationReport{}, err
	}
	return report, nil
}

func (s *Store) ListReports(ctx context.Context, filter store.ReportFilter) ([]models.ViolationReport, error) {
	query := `SELECT ` + reportColumns + ` FROM violation_reports WHERE 1=1`
	var args []interface{}
	if filter.StoreID != "" {
		args = append(args, filter.StoreID)
		query += fmt.Sprintf(" AND store_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []models.ViolationReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range reports {
		if reports[i].Votes, err = s.listVotes(ctx, reports[i].ReportID); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

// CastVote records the vote and, when the tally crosses the threshold or
// completes the round, flips the report to pending_approval. The report row
// is locked for the duration so two simultaneous deciding votes cannot both
// observe a pre-threshold tally.
func (s *Store) CastVote(ctx context.Context, input store.CastVoteInput) (models.ViolationReport, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ViolationReport{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM violation_reports
		WHERE report_id = $1
		FOR UPDATE
	`, input.ReportID)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrNotFound
		}
		return models.ViolationReport{}, err
	}
	if report.Status != models.ViolationCollecting {
		err = fmt.Errorf("%w: voting window is closed", store.ErrInvalidState)
		return models.ViolationReport{}, err
	}
	if !contains(report.EligibleVoterIDs, input.VoterID) {
		err = store.ErrNotEligible
		return models.ViolationReport{}, err
	}

	votedAt := input.VotedAt
	if votedAt.IsZero() {
		votedAt = time.Now().UTC()
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO violation_votes (report_id, voter_id, confirms, note, voted_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (report_id, voter_id) DO NOTHING
	`, input.ReportID, input.VoterID, input.Confirms, input.Note, votedAt)
	if err != nil {
		return models.ViolationReport{}, err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrAlreadyVoted
		return models.ViolationReport{}, err
	}

	var votesReceived, confirmations int
	row = tx.QueryRow(ctx, `
		SELECT COUNT(1), COUNT(1) FILTER (WHERE confirms)
		FROM violation_votes
		WHERE report_id = $1
	`, input.ReportID)
	if err = row.Scan(&votesReceived, &confirmations); err != nil {
		return models.ViolationReport{}, err
	}

	next := quorum.Outcome(len(report.EligibleVoterIDs), report.Threshold, votesReceived, confirmations)
	if next != report.Status {
		if _, err = tx.Exec(ctx, `
			UPDATE violation_reports
			SET status = $1
			WHERE report_id = $2 AND status = $3
		`, next, input.ReportID, models.ViolationCollecting); err != nil {
			return models.ViolationReport{}, err
		}
		report.Status = next
		if err = insertOutboxEvent(ctx, tx, report.StoreID, "violation.pending_approval", map[string]interface{}{
			"report_id": report.ReportID,
		}); err != nil {
			return models.ViolationReport{}, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.ViolationReport{}, err
	}

	if report.Votes, err = s.listVotes(ctx, input.ReportID); err != nil {
		return models.ViolationReport{}, err
	}
	return report, nil
}

// RequestInfo is a once-only exchange: a repeat request is a no-op that
// returns the report as it stands.
func (s *Store) RequestInfo(ctx context.Context, reportID, requestedBy, message string, at time.Time) (models.ViolationReport, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE violation_reports
		SET info_requested_by = $1,
			info_message = $2,
			info_requested_at = $3
		WHERE report_id = $4
			AND info_requested_by IS NULL
			AND status IN ('collecting_responses', 'pending_approval')
	`, requestedBy, message, at, reportID)
	if err != nil {
		return models.ViolationReport{}, err
	}
	if tag.RowsAffected() == 0 {
		report, getErr := s.GetReport(ctx, reportID)
		if getErr != nil {
			return models.ViolationReport{}, getErr
		}
		if report.InfoRequest == nil {
			return models.ViolationReport{}, fmt.Errorf("%w: report is %s", store.ErrInvalidState, report.Status)
		}
		return report, nil
	}
	return s.GetReport(ctx, reportID)
}

func (s *Store) SubmitInfo(ctx context.Context, reportID, reporterID, text string, at time.Time) (models.ViolationReport, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE violation_reports
		SET info_submitted = $1,
			info_submitted_at = $2
		WHERE report_id = $3
			AND reporter_employee_id = $4
			AND info_requested_by IS NOT NULL
			AND info_submitted IS NULL
	`, text, at, reportID, reporterID)
	if err != nil {
		return models.ViolationReport{}, err
	}
	if tag.RowsAffected() == 0 {
		report, getErr := s.GetReport(ctx, reportID)
		if getErr != nil {
			return models.ViolationReport{}, getErr
		}
		if report.ReporterEmployeeID != reporterID {
			return models.ViolationReport{}, fmt.Errorf("%w: only the reporter may respond", store.ErrForbidden)
		}
		return models.ViolationReport{}, fmt.Errorf("%w: no open information request", store.ErrInvalidState)
	}
	return s.GetReport(ctx, reportID)
}

func (s *Store) DecideReport(ctx context.Context, input store.DecideReportInput) (models.ViolationReport, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ViolationReport{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	status := models.ViolationApproved
	if input.Decision == models.DecisionNoViolation {
		status = models.ViolationRejected
	}
	decidedAt := input.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		UPDATE violation_reports
		SET status = $1,
			decision = $2,
			action = $3,
			action_details = NULLIF($4, ''),
			decision_notes = $5,
			reviewer_id = $6,
			decided_at = $7
		WHERE report_id = $8 AND status IN ('pending_approval', 'expired')
		RETURNING `+reportColumns+`
	`, status, input.Decision, input.Action, input.ActionDetails, input.Notes,
		input.ReviewerID, decidedAt, input.ReportID)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = s.classifyMissingReport(ctx, tx, input.ReportID)
			return models.ViolationReport{}, err
		}
		return models.ViolationReport{}, err
	}

	if err = insertOutboxEvent(ctx, tx, report.StoreID, "violation.decided", map[string]interface{}{
		"report_id":     report.ReportID,
		"recipient_ids": []string{report.ReportedEmployeeID, report.ReporterEmployeeID},
	}); err != nil {
		return models.ViolationReport{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.ViolationReport{}, err
	}

	if report.Votes, err = s.listVotes(ctx, input.ReportID); err != nil {
		return models.ViolationReport{}, err
	}
	return report, nil
}

func (s *Store) classifyMissingReport(ctx context.Context, tx pgx.Tx, reportID string) error {
	var status string
	row := tx.QueryRow(ctx, `SELECT status FROM violation_reports WHERE report_id = $1`, reportID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: report is %s", store.ErrInvalidState, status)
}

func (s *Store) ListOnShiftTechnicians(ctx context.Context, storeID, date string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT a.employee_id
		FROM attendance_shifts a
		JOIN employees e ON e.employee_id = a.employee_id
		WHERE a.store_id = $1
			AND a.date = $2
			AND a.check_in IS NOT NULL
			AND e.role IN ('Technician', 'Spa Expert')
		ORDER BY a.employee_id
	`, storeID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) GetQuorumRule(ctx context.Context, storeID string) (string, error) {
	var rule sql.NullString
	row := s.pool.QueryRow(ctx, `SELECT quorum_rule FROM store_settings WHERE store_id = $1`, storeID)
	if err := row.Scan(&rule); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return rule.String, nil
}

// SweepExpiredReports closes out reports whose voting window lapsed without
// reaching quorum. Zero rows touched just means another sweep got there
// first.
func (s *Store) SweepExpiredReports(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE violation_reports
		SET status = $1
		WHERE status = $2 AND expires_at <= $3
	`, models.ViolationExpired, models.ViolationCollecting, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) listVotes(ctx context.Context, reportID string) ([]models.Vote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT voter_id, confirms, note, voted_at
		FROM violation_votes
		WHERE report_id = $1
		ORDER BY voted_at ASC
	`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		var vote models.Vote
		if err := rows.Scan(&vote.VoterID, &vote.Confirms, &vote.Note, &vote.VotedAt); err != nil {
			return nil, err
		}
		votes = append(votes, vote)
	}
	return votes, rows.Err()
}

func scanReport(row rowScanner) (models.ViolationReport, error) {
	var report models.ViolationReport
	var infoBy, infoMsg, infoSubmitted sql.NullString
	var infoAt, infoSubmittedAt sql.NullTime
	var decision, action, actionDetails, notes, reviewer sql.NullString
	var decidedAt sql.NullTime
	if err := row.Scan(&report.ReportID, &report.StoreID, &report.ReportedEmployeeID,
		&report.ReporterEmployeeID, &report.Description, &report.IncidentDate,
		&report.EligibleVoterIDs, &report.Threshold, &report.Status, &report.ExpiresAt,
		&report.CreatedAt, &infoBy, &infoMsg, &infoAt, &infoSubmitted, &infoSubmittedAt,
		&decision, &action, &actionDetails, &notes, &reviewer, &decidedAt); err != nil {
		return models.ViolationReport{}, err
	}
	if infoBy.Valid {
		report.InfoRequest = &models.InfoRequest{
			RequestedBy:   infoBy.String,
			Message:       infoMsg.String,
			RequestedAt:   infoAt.Time,
			SubmittedInfo: nullStringPtr(infoSubmitted),
			SubmittedAt:   nullTimePtr(infoSubmittedAt),
		}
	}
	if decision.Valid {
		report.Decision = &models.ManagementDecision{
			Decision:      decision.String,
			Action:        action.String,
			ActionDetails: actionDetails.String,
			Notes:         notes.String,
			ReviewerID:    reviewer.String,
			DecidedAt:     decidedAt.Time,
		}
	}
	return report, nil
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
