package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists billing state in a local SQLite database.
type SQLiteStore struct {
	db            *sql.DB
	signupCredits int
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the billing database at path.
func NewSQLiteStore(path string, signupCredits int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("billing: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("billing: init schema: %w", err)
	}

	return &SQLiteStore{db: db, signupCredits: signupCredits}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (
		email                 TEXT PRIMARY KEY,
		credits               INTEGER NOT NULL DEFAULT 0,
		membership_plan       TEXT,
		membership_expires_at TEXT,
		created_at            TEXT NOT NULL,
		updated_at            TEXT NOT NULL
	)`)
	return err
}

// GetAccessInfo implements Store
func (s *SQLiteStore) GetAccessInfo(ctx context.Context, email string) (*AccessInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT email, credits, membership_plan, membership_expires_at FROM users WHERE email = ?`,
		email)
	return scanAccessInfo(row)
}

// EnsureUser implements Store
func (s *SQLiteStore) EnsureUser(ctx context.Context, email string) (*AccessInfo, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, credits, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		email, s.signupCredits, now, now)
	if err != nil {
		return nil, fmt.Errorf("billing: ensure user: %w", err)
	}
	return s.GetAccessInfo(ctx, email)
}

// DecrementCredit implements Store
func (s *SQLiteStore) DecrementCredit(ctx context.Context, email string) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET credits = credits - 1, updated_at = ?
		 WHERE email = ? AND credits > 0`,
		now, email)
	if err != nil {
		return 0, fmt.Errorf("billing: decrement credit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("billing: decrement credit: %w", err)
	}
	if affected == 0 {
		// Distinguish missing user from empty balance
		if _, err := s.GetAccessInfo(ctx, email); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientCredits
	}

	var remaining int
	err = s.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE email = ?`, email).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("billing: read balance: %w", err)
	}
	return remaining, nil
}

// AddCredits implements Store
func (s *SQLiteStore) AddCredits(ctx context.Context, email string, n int) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET credits = credits + ?, updated_at = ? WHERE email = ?`,
		n, now, email)
	if err != nil {
		return 0, fmt.Errorf("billing: add credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("billing: add credits: %w", err)
	}
	if affected == 0 {
		return 0, ErrUserNotFound
	}

	var balance int
	err = s.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE email = ?`, email).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("billing: read balance: %w", err)
	}
	return balance, nil
}

// ActivateMembership implements Store
func (s *SQLiteStore) ActivateMembership(ctx context.Context, email string, plan Plan, now time.Time) error {
	info, err := s.GetAccessInfo(ctx, email)
	if err != nil {
		return err
	}

	expiry := NextExpiry(info.MembershipExpiresAt, plan, now)
	var expiryStr any
	if expiry != nil {
		expiryStr = expiry.UTC().Format(time.RFC3339)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET membership_plan = ?, membership_expires_at = ?, updated_at = ?
		 WHERE email = ?`,
		string(plan), expiryStr, time.Now().UTC().Format(time.RFC3339), email)
	if err != nil {
		return fmt.Errorf("billing: activate membership: %w", err)
	}
	return nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccessInfo(row rowScanner) (*AccessInfo, error) {
	var info AccessInfo
	var plan, expiresAt sql.NullString
	err := row.Scan(&info.Email, &info.Credits, &plan, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("billing: scan user: %w", err)
	}

	info.MembershipPlan = plan.String
	if expiresAt.Valid && expiresAt.String != "" {
		t, err := time.Parse(time.RFC3339, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("billing: parse membership expiry: %w", err)
		}
		info.MembershipExpiresAt = &t
	}
	return &info, nil
}
