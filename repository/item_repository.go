package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"labInventoryManager/internal/db"
	"labInventoryManager/models"
)

type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Add inserts an item and returns its generated ID. Duplicate names are allowed
// and quantity is stored as given. A nil description is stored as NULL.
func (r *ItemRepository) Add(ctx context.Context, name string, quantity int64, description *string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO inventory (name, quantity, description) VALUES (?, ?, ?)`,
			name, quantity, nullString(description))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add item: %w", err)
	}
	return id, nil
}

// Search returns every item whose name contains term, ignoring ASCII case,
// ordered by ID. An empty term matches all items. No match yields an empty,
// non-nil slice.
func (r *ItemRepository) Search(ctx context.Context, term string) ([]models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := []models.Item{}
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, name, quantity, description FROM inventory WHERE name LIKE ? ESCAPE '\' ORDER BY id`,
			"%"+escapeLike(term)+"%")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				it   models.Item
				desc sql.NullString
			)
			if err := rows.Scan(&it.ID, &it.Name, &it.Quantity, &desc); err != nil {
				return err
			}
			if desc.Valid {
				s := desc.String
				it.Description = &s
			}
			out = append(out, it)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return out, nil
}

// Count returns the number of items in the register.
func (r *ItemRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int64
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory`).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes term match literally inside a LIKE pattern with ESCAPE '\'.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
