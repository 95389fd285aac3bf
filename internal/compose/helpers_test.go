package compose

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/modkit/internal/ir"
	"github.com/roach88/modkit/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOpts() []Option {
	return []Option{
		WithLogger(quietLogger()),
		WithIDGenerator(testutil.NewSequentialGenerator("comp")),
	}
}

// noop is an operation that leaves configuration unchanged.
func noop(Call) (ir.IRObject, error) {
	return nil, nil
}

// appendLog records the capability name in meta.log.
func appendLog(call Call) (ir.IRObject, error) {
	log := ir.IRArray{}
	if v, ok := call.Config.Lookup("meta.log"); ok {
		log = v.(ir.IRArray)
	}
	log = append(log, ir.IRString(call.Capability))
	return ir.IRObject{"meta": ir.IRObject{"log": log}}, nil
}

// module creates a descriptor contributing no-op capabilities.
func module(name string, caps ...string) *Descriptor {
	return New(name, func() (Contribution, error) {
		c := Contribution{}
		for _, n := range caps {
			c.Capabilities = append(c.Capabilities, Op(n, noop))
		}
		return c, nil
	})
}

// configModule creates a descriptor contributing only configuration fields.
func configModule(name string, fields ...ir.ConfigField) *Descriptor {
	return New(name, func() (Contribution, error) {
		return Contribution{Config: fields}, nil
	})
}

func mustCompose(t *testing.T, modules ...*Descriptor) *Composition {
	t.Helper()
	c, err := Compose(modules, testOpts()...)
	require.NoError(t, err)
	return c
}

func mustBuilder(t *testing.T, overrides ir.IRObject, modules ...*Descriptor) *Builder {
	t.Helper()
	b, err := mustCompose(t, modules...).NewBuilder(overrides)
	require.NoError(t, err)
	return b
}

func requireCode(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	require.Error(t, err)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	require.Equal(t, code, ce.Code, "error: %v", err)
	return ce
}
