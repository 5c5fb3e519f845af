// Package bootstrap prepares a database for serving: schema migrations plus
// the default administrator account. It runs once at process start, before
// any store is handed to a caller.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"labInventoryManager/internal/config"
	"labInventoryManager/internal/db"
	"labInventoryManager/models"
	"labInventoryManager/repository"
)

// ErrFatal wraps every bootstrap failure. The process must not serve after it.
var ErrFatal = errors.New("bootstrap failed")

// Run opens the database at path, brings the schema up to date and ensures
// the configured admin exists. It is safe to run repeatedly against the same
// database.
func Run(ctx context.Context, path string, admin config.AdminConfig) (*sql.DB, error) {
	d, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrFatal, err)
	}
	if err := EnsureAdmin(ctx, repository.NewUserRepository(d), admin); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// EnsureAdmin inserts the configured admin unless a user with that username
// already exists. An existing account is left untouched.
func EnsureAdmin(ctx context.Context, users *repository.UserRepository, admin config.AdminConfig) error {
	if admin.Username == "" {
		return fmt.Errorf("%w: admin username is empty", ErrFatal)
	}
	created, err := users.EnsureUser(ctx, models.User{
		Username: admin.Username,
		Password: admin.Password,
		Email:    admin.Email,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFatal, err)
	}
	if created {
		log.Info().Str("username", admin.Username).Msg("created default admin")
	} else {
		log.Debug().Str("username", admin.Username).Msg("default admin already present")
	}
	return nil
}
