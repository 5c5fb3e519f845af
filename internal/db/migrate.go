package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	stdfs "io/fs"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version  int
	name     string
	upFile   string // path inside embedded FS
	downFile string // path inside embedded FS
}

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.(up|down)\.sql$`)

// noTxMarker at the top of a script runs it outside a transaction.
const noTxMarker = "-- NO_TX"

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations. Running it against an up-to-date database is a no-op.
func Migrate(d *sql.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	migs, err := loadMigrations()
	if err != nil {
		return err
	}
	if len(migs) == 0 {
		return nil
	}
	applied, err := appliedVersions(d)
	if err != nil {
		return err
	}
	versions := make([]int, 0, len(migs))
	for v := range migs {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	for _, v := range versions {
		if applied[v] {
			continue
		}
		m := migs[v]
		if strings.TrimSpace(m.upFile) == "" {
			return fmt.Errorf("missing up migration for version %04d", v)
		}
		ran, err := runScript(d, m.upFile, `INSERT INTO schema_migrations(version) VALUES(?)`, v, false)
		if err != nil {
			return fmt.Errorf("migration %04d failed: %w", v, err)
		}
		if !ran {
			// another connection applied it after appliedVersions was read
			continue
		}
		log.Info().Int("version", v).Str("name", m.name).Msg("applied migration")
	}
	return nil
}

// RollbackLast rolls back the most recently applied migration, if its down script exists.
// It returns the reverted version, or 0 when nothing was applied.
func RollbackLast(d *sql.DB) (int, error) {
	if d == nil {
		return 0, errors.New("nil db")
	}
	if err := ensureMigrationsTable(d); err != nil {
		return 0, err
	}
	var version int
	err := d.QueryRow(`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	migs, err := loadMigrations()
	if err != nil {
		return 0, err
	}
	m, ok := migs[version]
	if !ok || m.downFile == "" {
		return 0, fmt.Errorf("no down migration found for version %d", version)
	}
	ran, err := runScript(d, m.downFile, `DELETE FROM schema_migrations WHERE version = ?`, version, true)
	if err != nil {
		return 0, fmt.Errorf("rollback %04d failed: %w", version, err)
	}
	if !ran {
		return 0, nil
	}
	log.Info().Int("version", version).Str("name", m.name).Msg("rolled back migration")
	return version, nil
}

// runScript executes an embedded script and the bookkeeping statement for
// version, together in one transaction unless the script opts out. The
// script only runs when version's presence in schema_migrations equals
// wantRecorded; that check happens after Begin, which takes the write lock
// (_txlock=immediate), so concurrent migrators apply each version once.
// It reports whether the script ran.
func runScript(d *sql.DB, file, bookkeeping string, version int, wantRecorded bool) (bool, error) {
	raw, err := migrationsFS.ReadFile(file)
	if err != nil {
		return false, err
	}
	text := string(raw)
	if strings.HasPrefix(strings.TrimSpace(text), noTxMarker) {
		recorded, err := isRecorded(d, version)
		if err != nil || recorded != wantRecorded {
			return false, err
		}
		if _, err := d.Exec(text); err != nil {
			return false, err
		}
		_, err = d.Exec(bookkeeping, version)
		return err == nil, err
	}
	tx, err := d.Begin()
	if err != nil {
		return false, err
	}
	recorded, err := isRecorded(tx, version)
	if err != nil || recorded != wantRecorded {
		_ = tx.Rollback()
		return false, err
	}
	if _, err := tx.Exec(text); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if _, err := tx.Exec(bookkeeping, version); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func isRecorded(q queryRower, version int) (bool, error) {
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&n)
	return n > 0, err
}

func loadMigrations() (map[int]migration, error) {
	entries := map[int]migration{}
	list, err := stdfs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		// if directory missing, just return empty set
		return entries, nil
	}
	for _, de := range list {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		m := migFileRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		verStr, migName, kind := m[1], m[2], m[3]
		var ver int
		if _, err := fmt.Sscanf(verStr, "%04d", &ver); err != nil {
			continue
		}
		item := entries[ver]
		item.version = ver
		item.name = migName
		p := "migrations/" + name
		if kind == "up" {
			item.upFile = p
		} else {
			item.downFile = p
		}
		entries[ver] = item
	}
	return entries, nil
}

func ensureMigrationsTable(d *sql.DB) error {
	_, err := d.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
    )`)
	return err
}

func appliedVersions(d *sql.DB) (map[int]bool, error) {
	if err := ensureMigrationsTable(d); err != nil {
		return nil, err
	}
	rows, err := d.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	got := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		got[v] = true
	}
	return got, rows.Err()
}
