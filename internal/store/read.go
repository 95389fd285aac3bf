package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/modkit/internal/ir"
)

// ErrCorruptSnapshot is returned when a stored surface no longer hashes to
// its recorded fingerprint.
var ErrCorruptSnapshot = errors.New("snapshot fingerprint does not match surface")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const snapshotColumns = `id, seq, fingerprint, surface, created_by, ir_version`

// ReadSnapshot retrieves a single snapshot by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSnapshot(ctx context.Context, id string) (ir.Snapshot, error) {
	return readSnapshot(ctx, s.db, id)
}

// ListSnapshots returns the most recent snapshots, newest first.
// A limit of zero or less returns every snapshot.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]ir.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM compositions ORDER BY seq DESC, id COLLATE BINARY ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.querySnapshots(ctx, query, args...)
}

// FindByFingerprint returns every snapshot with the given fingerprint.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if none match.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) ([]ir.Snapshot, error) {
	return s.querySnapshots(ctx, `
		SELECT `+snapshotColumns+`
		FROM compositions
		WHERE fingerprint = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, fingerprint)
}

// FindByModule returns every snapshot that registered a module with the
// given name, ordered like FindByFingerprint.
func (s *Store) FindByModule(ctx context.Context, name string) ([]ir.Snapshot, error) {
	return s.querySnapshots(ctx, `
		SELECT `+snapshotColumns+`
		FROM compositions
		WHERE id IN (SELECT composition_id FROM composition_modules WHERE name = ?)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, name)
}

// ReadCalls returns the recorded calls of a composition in call order.
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadCalls(ctx context.Context, compositionID string) ([]ir.CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, capability, module, args
		FROM composition_calls
		WHERE composition_id = ?
		ORDER BY position ASC
	`, compositionID)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []ir.CallRecord{}
	for rows.Next() {
		var c ir.CallRecord
		var argsJSON string
		if err := rows.Scan(&c.Position, &c.Capability, &c.Module, &argsJSON); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		if c.Args, err = unmarshalArgs(argsJSON); err != nil {
			return nil, fmt.Errorf("call %d: %w", c.Position, err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

// querySnapshots runs a snapshot query and loads module lists afterwards.
// Rows are closed before the module queries: the store holds a single
// connection.
func (s *Store) querySnapshots(ctx context.Context, query string, args ...any) ([]ir.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}

	snaps := []ir.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	rows.Close()

	for i := range snaps {
		if snaps[i].Modules, err = readModules(ctx, s.db, snaps[i].ID); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

func readSnapshot(ctx context.Context, q querier, id string) (ir.Snapshot, error) {
	row := q.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM compositions WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if err != nil {
		return ir.Snapshot{}, err
	}
	if snap.Modules, err = readModules(ctx, q, id); err != nil {
		return ir.Snapshot{}, err
	}
	return snap, nil
}

func readModules(ctx context.Context, q querier, id string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name FROM composition_modules
		WHERE composition_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query modules of %s: %w", id, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}
	return names, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSnapshot scans a snapshot row and verifies its fingerprint.
// sql.ErrNoRows is returned unwrapped so callers can test for it.
func scanSnapshot(row rowScanner) (ir.Snapshot, error) {
	var snap ir.Snapshot
	var surfaceJSON string
	err := row.Scan(
		&snap.ID,
		&snap.Seq,
		&snap.Fingerprint,
		&surfaceJSON,
		&snap.CreatedBy,
		&snap.IRVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Snapshot{}, err
		}
		return ir.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}

	if snap.Surface, err = unmarshalSurface(surfaceJSON); err != nil {
		return ir.Snapshot{}, fmt.Errorf("snapshot %s: %w", snap.ID, err)
	}
	if err := verifyFingerprint(snap); err != nil {
		return ir.Snapshot{}, fmt.Errorf("snapshot %s: %w", snap.ID, err)
	}
	return snap, nil
}

// verifyFingerprint recomputes the surface hash and compares it with both
// recorded copies of the fingerprint.
func verifyFingerprint(snap ir.Snapshot) error {
	fp, err := ir.SurfaceFingerprint(snap.Surface)
	if err != nil {
		return err
	}
	if fp != snap.Fingerprint || fp != snap.Surface.Fingerprint {
		return fmt.Errorf("%w: have %s, computed %s", ErrCorruptSnapshot, snap.Fingerprint, fp)
	}
	return nil
}
