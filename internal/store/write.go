package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/modkit/internal/ir"
)

// WriteSnapshot records a composition snapshot and returns it with its
// assigned seq. The caller's Seq is ignored: seq is MAX(seq)+1 inside the
// write transaction.
//
// Writes are idempotent on ID. Writing an ID that already exists returns
// the stored snapshot unchanged.
//
// The fingerprint must match the surface; a mismatch is rejected before
// anything is written.
func (s *Store) WriteSnapshot(ctx context.Context, snap ir.Snapshot) (ir.Snapshot, error) {
	if snap.ID == "" {
		return ir.Snapshot{}, fmt.Errorf("write snapshot: empty id")
	}
	if err := verifyFingerprint(snap); err != nil {
		return ir.Snapshot{}, fmt.Errorf("write snapshot %s: %w", snap.ID, err)
	}

	surfaceJSON, err := marshalSurface(snap.Surface)
	if err != nil {
		return ir.Snapshot{}, fmt.Errorf("write snapshot %s: %w", snap.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Snapshot{}, fmt.Errorf("write snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := readSnapshot(ctx, tx, snap.ID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return ir.Snapshot{}, fmt.Errorf("write snapshot %s: %w", snap.ID, err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM compositions`).Scan(&seq); err != nil {
		return ir.Snapshot{}, fmt.Errorf("write snapshot: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO compositions
		(id, seq, fingerprint, surface, created_by, ir_version)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		snap.ID,
		seq,
		snap.Fingerprint,
		surfaceJSON,
		snap.CreatedBy,
		snap.IRVersion,
	)
	if err != nil {
		return ir.Snapshot{}, fmt.Errorf("write snapshot %s: %w", snap.ID, err)
	}

	for i, name := range snap.Surface.Modules {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO composition_modules (composition_id, position, name)
			VALUES (?, ?, ?)
		`, snap.ID, i, name)
		if err != nil {
			return ir.Snapshot{}, fmt.Errorf("write snapshot %s: module %q: %w", snap.ID, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ir.Snapshot{}, fmt.Errorf("write snapshot %s: commit: %w", snap.ID, err)
	}

	snap.Seq = seq
	snap.Modules = append([]string{}, snap.Surface.Modules...)
	return snap, nil
}

// WriteCalls records the calls applied to a builder of the composition.
// Uses ON CONFLICT DO NOTHING on (composition_id, position), so writing
// the same trace twice is a no-op.
//
// Note: The composition must exist (foreign key constraint).
func (s *Store) WriteCalls(ctx context.Context, compositionID string, calls []ir.CallRecord) error {
	if len(calls) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write calls: begin: %w", err)
	}
	defer tx.Rollback()

	for _, c := range calls {
		argsJSON, err := marshalArgs(c.Args)
		if err != nil {
			return fmt.Errorf("write calls: %s: %w", c.Capability, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO composition_calls
			(composition_id, position, capability, module, args)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`,
			compositionID,
			c.Position,
			c.Capability,
			c.Module,
			argsJSON,
		)
		if err != nil {
			return fmt.Errorf("write calls: %s: %w", c.Capability, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write calls: commit: %w", err)
	}
	return nil
}
