package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a pallet or compilation does not exist.
var ErrNotFound = errors.New("not found")

// Compilation is one archived compile attempt. PalletID is empty when the
// compilation failed.
type Compilation struct {
	ID              string    `json:"id"`
	Seq             int64     `json:"seq"`
	Root            string    `json:"root"`
	PalletID        string    `json:"pallet_id,omitempty"`
	ErrorCode       string    `json:"error_code,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CompilerVersion string    `json:"compiler_version"`
	CreatedAt       time.Time `json:"created_at"`
}

// Succeeded reports whether the compilation produced a pallet.
func (c Compilation) Succeeded() bool {
	return c.PalletID != ""
}

// PackageRecord is one unit of an archived pallet.
type PackageRecord struct {
	Position int    `json:"position"`
	Key      string `json:"key"`
	Hash     string `json:"hash"`
}

// History returns archived compilations in seq order. An empty root
// returns compilations of every root.
//
// Returns an empty slice (not nil) if nothing was archived.
func (s *Store) History(ctx context.Context, root string) ([]Compilation, error) {
	query := `
		SELECT id, seq, root, pallet_id, error_code, error_message, compiler_version, created_at
		FROM compilations
	`
	var args []any
	if root != "" {
		query += " WHERE root = ?"
		args = append(args, root)
	}
	query += " ORDER BY seq ASC, id ASC COLLATE BINARY"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	compilations := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		compilations = append(compilations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return compilations, nil
}

// ReadCompilation returns a compilation by ID.
func (s *Store) ReadCompilation(ctx context.Context, id string) (Compilation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, root, pallet_id, error_code, error_message, compiler_version, created_at
		FROM compilations
		WHERE id = ?
	`, id)
	c, err := scanCompilation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Compilation{}, fmt.Errorf("compilation %s: %w", id, ErrNotFound)
	}
	return c, err
}

// Pallet returns the canonical document archived under id.
func (s *Store) Pallet(ctx context.Context, id string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM pallets WHERE id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pallet %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read pallet: %w", err)
	}
	return []byte(doc), nil
}

// PalletPackages returns the units of an archived pallet in pallet order.
func (s *Store) PalletPackages(ctx context.Context, id string) ([]PackageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, package_key, package_hash
		FROM pallet_packages
		WHERE pallet_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query pallet packages: %w", err)
	}
	defer rows.Close()

	records := []PackageRecord{}
	for rows.Next() {
		var r PackageRecord
		if err := rows.Scan(&r.Position, &r.Key, &r.Hash); err != nil {
			return nil, fmt.Errorf("scan pallet package: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pallet packages: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompilation(row scanner) (Compilation, error) {
	var (
		c         Compilation
		palletID  sql.NullString
		createdAt string
	)
	err := row.Scan(&c.ID, &c.Seq, &c.Root, &palletID, &c.ErrorCode, &c.ErrorMessage, &c.CompilerVersion, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Compilation{}, err
	}
	if err != nil {
		return Compilation{}, fmt.Errorf("scan compilation: %w", err)
	}
	c.PalletID = palletID.String
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Compilation{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return c, nil
}
