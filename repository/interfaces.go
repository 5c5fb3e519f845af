package repository

import (
	"context"

	"labInventoryManager/models"
)

// UserRepositoryI is the credential store consumed by the login and
// lab-provisioning flows.
type UserRepositoryI interface {
	Validate(ctx context.Context, username, password string) (bool, error)
	Exists(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateAdmin(ctx context.Context, username, password, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// ItemRepositoryI is the inventory store consumed once a user is logged in.
type ItemRepositoryI interface {
	Add(ctx context.Context, name string, quantity int64, description *string) (int64, error)
	Search(ctx context.Context, term string) ([]models.Item, error)
}

var (
	_ UserRepositoryI = (*UserRepository)(nil)
	_ ItemRepositoryI = (*ItemRepository)(nil)
)
