package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

const defaultSessionTTL = 12 * time.Hour

func (s *Store) Login(ctx context.Context, input store.LoginInput) (store.Session, error) {
	var pinHash []byte
	var role string
	row := s.pool.QueryRow(ctx, `
		SELECT pin_hash, role
		FROM employees
		WHERE employee_id = $1 AND active
	`, input.EmployeeID)
	if err := row.Scan(&pinHash, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrBadCredentials
		}
		return store.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword(pinHash, []byte(input.PIN)); err != nil {
		return store.Session{}, store.ErrBadCredentials
	}

	storeIDs, err := s.employeeStores(ctx, input.EmployeeID)
	if err != nil {
		return store.Session{}, err
	}
	if input.StoreID != "" && !contains(storeIDs, input.StoreID) {
		return store.Session{}, fmt.Errorf("%w: employee is not assigned to this store", store.ErrForbidden)
	}

	session := store.Session{
		SessionID:  uuid.NewString(),
		EmployeeID: input.EmployeeID,
		Role:       role,
		StoreIDs:   storeIDs,
		ExpiresAt:  time.Now().UTC().Add(s.sessionTTL),
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, employee_id, expires_at)
		VALUES ($1, $2, $3)
	`, session.SessionID, session.EmployeeID, session.ExpiresAt); err != nil {
		return store.Session{}, err
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	session := store.Session{SessionID: sessionID}
	row := s.pool.QueryRow(ctx, `
		SELECT s.employee_id, e.role, s.expires_at
		FROM sessions s
		JOIN employees e ON e.employee_id = s.employee_id
		WHERE s.session_id = $1 AND s.expires_at > NOW() AND e.active
	`, sessionID)
	if err := row.Scan(&session.EmployeeID, &session.Role, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrSessionNotFound
		}
		return store.Session{}, err
	}
	storeIDs, err := s.employeeStores(ctx, session.EmployeeID)
	if err != nil {
		return store.Session{}, err
	}
	session.StoreIDs = storeIDs
	return session, nil
}

func (s *Store) employeeStores(ctx context.Context, employeeID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT store_id
		FROM employee_stores
		WHERE employee_id = $1
		ORDER BY store_id
	`, employeeID)
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
