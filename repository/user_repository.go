package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"labInventoryManager/internal/db"
	"labInventoryManager/models"
)

const userOpTimeout = 3 * time.Second

// UserRepository is the credential store. Every method runs in its own
// transaction obtained from db.WithTx.
type UserRepository struct {
	db     *sql.DB
	policy ConflictPolicy
}

// NewUserRepository returns a repository using PolicyRejectAny.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, policy: PolicyRejectAny}
}

// WithPolicy returns a copy of r that provisions admins under p.
func (r *UserRepository) WithPolicy(p ConflictPolicy) *UserRepository {
	cp := *r
	cp.policy = p
	return &cp
}

// Policy returns the active provisioning policy.
func (r *UserRepository) Policy() ConflictPolicy { return r.policy }

// Validate reports whether a user with exactly this username and password exists.
// A wrong username and a wrong password are indistinguishable to the caller.
func (r *UserRepository) Validate(ctx context.Context, username, password string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, userOpTimeout)
	defer cancel()

	var ok bool
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		ok, err = rowExists(ctx, tx, `SELECT 1 FROM users WHERE username = ? AND password = ? LIMIT 1`, username, password)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("validate user: %w", err)
	}
	return ok, nil
}

// Exists reports whether username is taken.
func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM users WHERE username = ? LIMIT 1`, username)
}

// ExistsByEmail reports whether any user has this email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM users WHERE email = ? LIMIT 1`, email)
}

func (r *UserRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, userOpTimeout)
	defer cancel()

	var ok bool
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		ok, err = rowExists(ctx, tx, query, arg)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return ok, nil
}

// CreateAdmin provisions a new lab administrator. It returns ErrConflict when
// the policy precondition fails or the username is already taken; in both
// cases nothing is written. The collision checks and the insert share one
// immediate transaction, so concurrent callers are serialized.
func (r *UserRepository) CreateAdmin(ctx context.Context, username, password, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, userOpTimeout)
	defer cancel()

	var id int64
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		usernameTaken, err := rowExists(ctx, tx, `SELECT 1 FROM users WHERE username = ? LIMIT 1`, username)
		if err != nil {
			return err
		}
		emailTaken, err := rowExists(ctx, tx, `SELECT 1 FROM users WHERE email = ? LIMIT 1`, email)
		if err != nil {
			return err
		}
		if r.policy.rejects(usernameTaken, emailTaken) {
			return ErrConflict
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO users (username, password, email) VALUES (?, ?, ?)`, username, password, email)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return &models.User{ID: id, Username: username, Email: email}, nil
}

// EnsureUser inserts u unless its username is already taken. It reports
// whether a row was created. Used by bootstrap, which must stay idempotent.
func (r *UserRepository) EnsureUser(ctx context.Context, u models.User) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, userOpTimeout)
	defer cancel()

	var created bool
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password, email) VALUES (?, ?, ?) ON CONFLICT(username) DO NOTHING`,
			u.Username, u.Password, u.Email)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		created = n == 1
		return err
	})
	if err != nil {
		return false, fmt.Errorf("ensure user %s: %w", u.Username, err)
	}
	return created, nil
}

// GetByUsername returns the user without its password, or nil when absent.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, userOpTimeout)
	defer cancel()

	var u *models.User
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var got models.User
		err := tx.QueryRowContext(ctx, `SELECT id, username, email FROM users WHERE username = ?`, username).
			Scan(&got.ID, &got.Username, &got.Email)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		u = &got
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return u, nil
}

// CountByUsername returns how many rows carry username. The UNIQUE
// constraint keeps it at 0 or 1; tests use it to check that invariant.
func (r *UserRepository) CountByUsername(ctx context.Context, username string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, userOpTimeout)
	defer cancel()

	var n int
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func rowExists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
