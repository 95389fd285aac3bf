package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/modkit/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSnapshot builds a snapshot whose surface registers the given
// modules, each contributing one "<name>Fn" capability and one required
// "<name>.enabled" bool field. The fingerprint is computed.
func createTestSnapshot(id string, modules ...string) ir.Snapshot {
	surface := ir.Surface{
		Modules:      append([]string{}, modules...),
		Capabilities: []ir.CapabilityEntry{},
		Shape: []ir.ConfigField{
			{Path: "ctx", Type: ir.TypeObject, Required: true},
		},
	}
	for _, m := range modules {
		surface.Capabilities = append(surface.Capabilities, ir.CapabilityEntry{
			Name:   m + "Fn",
			Module: m,
			Args:   []ir.NamedArg{},
		})
		surface.Shape = append(surface.Shape, ir.ConfigField{
			Path:     m + ".enabled",
			Type:     ir.TypeBool,
			Required: true,
			Module:   m,
		})
	}
	surface.Fingerprint = ir.MustSurfaceFingerprint(surface)

	return ir.Snapshot{
		ID:          id,
		Fingerprint: surface.Fingerprint,
		Modules:     append([]string{}, modules...),
		Surface:     surface,
		CreatedBy:   "test",
		IRVersion:   ir.IRVersion,
	}
}

// mustWriteSnapshot writes a snapshot and fails the test on error.
func mustWriteSnapshot(t *testing.T, s *Store, snap ir.Snapshot) ir.Snapshot {
	t.Helper()
	written, err := s.WriteSnapshot(context.Background(), snap)
	if err != nil {
		t.Fatalf("WriteSnapshot(%s) failed: %v", snap.ID, err)
	}
	return written
}

func snapshotIDs(snaps []ir.Snapshot) []string {
	ids := make([]string, len(snaps))
	for i, s := range snaps {
		ids[i] = s.ID
	}
	return ids
}
