package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/nao/internal/emit"
	"github.com/roach88/nao/internal/ir"
	"github.com/roach88/nao/internal/resolver"
)

// RecordSuccess archives the emitted pallet of a successful compilation of
// root. The pallet is stored once per content ID; every call adds a new
// compilation row.
func (s *Store) RecordSuccess(ctx context.Context, root string, p *resolver.Pallet) (Compilation, error) {
	e, err := emit.Emit(p)
	if err != nil {
		return Compilation{}, fmt.Errorf("record success: %w", err)
	}
	hashes := make([]string, len(p.Units))
	for i, u := range p.Units {
		if hashes[i], err = ir.PackageHash(u.Package); err != nil {
			return Compilation{}, fmt.Errorf("record success: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Compilation{}, fmt.Errorf("record success: begin: %w", err)
	}
	defer tx.Rollback()

	// Content-addressed: the same document is stored once.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pallets (id, document, ir_version)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID, string(e.Canonical), ir.IRVersion); err != nil {
		return Compilation{}, fmt.Errorf("record success: insert pallet: %w", err)
	}
	for i, u := range p.Units {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pallet_packages (pallet_id, position, package_key, package_hash)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, e.ID, i, u.Key, hashes[i]); err != nil {
			return Compilation{}, fmt.Errorf("record success: insert package %s: %w", u.Key, err)
		}
	}

	c, err := s.insertCompilation(ctx, tx, Compilation{Root: root, PalletID: e.ID})
	if err != nil {
		return Compilation{}, fmt.Errorf("record success: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Compilation{}, fmt.Errorf("record success: commit: %w", err)
	}
	return c, nil
}

// RecordFailure archives a compilation of root that failed with the given
// error code and message.
func (s *Store) RecordFailure(ctx context.Context, root, code, message string) (Compilation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Compilation{}, fmt.Errorf("record failure: begin: %w", err)
	}
	defer tx.Rollback()

	c, err := s.insertCompilation(ctx, tx, Compilation{Root: root, ErrorCode: code, ErrorMessage: message})
	if err != nil {
		return Compilation{}, fmt.Errorf("record failure: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Compilation{}, fmt.Errorf("record failure: commit: %w", err)
	}
	return c, nil
}

// insertCompilation assigns the ID, the next seq and the timestamp, then
// inserts the row.
func (s *Store) insertCompilation(ctx context.Context, tx *sql.Tx, c Compilation) (Compilation, error) {
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM compilations").Scan(&c.Seq); err != nil {
		return Compilation{}, fmt.Errorf("next seq: %w", err)
	}
	c.ID = s.ids.Generate()
	c.CompilerVersion = ir.CompilerVersion
	c.CreatedAt = s.clock.Now().UTC()

	var palletID sql.NullString
	if c.PalletID != "" {
		palletID = sql.NullString{String: c.PalletID, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO compilations
		(id, seq, root, pallet_id, error_code, error_message, compiler_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.Seq,
		c.Root,
		palletID,
		c.ErrorCode,
		c.ErrorMessage,
		c.CompilerVersion,
		c.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Compilation{}, fmt.Errorf("insert compilation: %w", err)
	}
	return c, nil
}
