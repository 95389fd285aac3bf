package compose

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/modkit/internal/ir"
)

// TraceEntry records one applied call.
type TraceEntry struct {
	Capability string      `json:"capability"`
	Module     string      `json:"module"`
	Args       ir.IRObject `json:"args"`
}

// Builder exposes the operations of a composition, each closed over the
// builder's effective configuration. Builders are immutable: Call returns
// a new builder and leaves the receiver untouched, so one builder can be
// shared read-only across goroutines.
type Builder struct {
	comp   *Composition
	config ir.IRObject
	trace  []TraceEntry
}

func (b *Builder) ready() error {
	if b == nil || b.comp == nil {
		return newError(CodeNotReady, "builder used before registration completed")
	}
	return nil
}

// Composition returns the composition the builder was created from.
func (b *Builder) Composition() *Composition {
	if b == nil {
		return nil
	}
	return b.comp
}

// Operations returns the sorted operation names. Empty for an unready builder.
func (b *Builder) Operations() []string {
	if b.ready() != nil {
		return []string{}
	}
	return b.comp.Operations()
}

// Has reports whether the builder exposes the operation.
func (b *Builder) Has(name string) bool {
	if b.ready() != nil {
		return false
	}
	return b.comp.Has(name)
}

// Config returns a copy of the effective configuration.
func (b *Builder) Config() ir.IRObject {
	if b.ready() != nil {
		return ir.IRObject{}
	}
	return b.config.Clone()
}

// Trace returns the calls applied to reach this builder, oldest first.
func (b *Builder) Trace() []TraceEntry {
	if b.ready() != nil {
		return []TraceEntry{}
	}
	out := make([]TraceEntry, len(b.trace))
	for i, e := range b.trace {
		out[i] = TraceEntry{Capability: e.Capability, Module: e.Module, Args: e.Args.Clone()}
	}
	return out
}

// CallRecords returns the trace as positioned records for storage.
func (b *Builder) CallRecords() []ir.CallRecord {
	trace := b.Trace()
	records := make([]ir.CallRecord, len(trace))
	for i, e := range trace {
		records[i] = ir.CallRecord{
			Position:   int64(i),
			Capability: e.Capability,
			Module:     e.Module,
			Args:       e.Args,
		}
	}
	return records
}

// Call invokes an operation by name and returns the derived builder.
// Unknown names fail with UNSUPPORTED_CAPABILITY.
func (b *Builder) Call(name string, args ir.IRObject) (*Builder, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	entry, ok := b.comp.caps[name]
	if !ok {
		return nil, &Error{
			Code: CodeUnsupportedCapability,
			Message: fmt.Sprintf("no registered module provides %q (registered: %s)",
				name, strings.Join(b.comp.surface.Modules, ", ")),
			Capability: name,
		}
	}
	return b.apply(name, entry, args)
}

// Invoke is Call through a module's Key. When the key's module was not
// registered the error names that module.
func (b *Builder) Invoke(key Key, args ir.IRObject) (*Builder, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	entry, ok := b.comp.caps[key.capability]
	if !ok || entry.module != key.module {
		return nil, &Error{
			Code:       CodeUnsupportedCapability,
			Message:    fmt.Sprintf("module %q is not registered in this composition", key.module.Name()),
			Module:     key.module.Name(),
			Capability: key.capability,
		}
	}
	return b.apply(key.capability, entry, args)
}

func (b *Builder) apply(name string, entry capEntry, args ir.IRObject) (*Builder, error) {
	args = args.Clone()
	module := entry.module.Name()

	patch, err := entry.fn(Call{
		Capability: name,
		Module:     module,
		Args:       args.Clone(),
		Config:     b.config.Clone(),
	})
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			out := *ce
			if out.Module == "" {
				out.Module = module
			}
			if out.Capability == "" {
				out.Capability = name
			}
			return nil, &out
		}
		return nil, &Error{
			Code:       CodeOperationFailed,
			Message:    "operation returned an error",
			Module:     module,
			Capability: name,
			Err:        err,
		}
	}

	next := b.config
	if len(patch) > 0 {
		next = ir.DeepMerge(b.config, patch)
		if err := checkConfig(b.comp.shape, next); err != nil {
			var ce *Error
			if errors.As(err, &ce) {
				ce.Module = module
				ce.Capability = name
			}
			return nil, err
		}
	}

	trace := append(slices.Clone(b.trace), TraceEntry{Capability: name, Module: module, Args: args})

	b.comp.logger.Debug("capability applied",
		"composition", b.comp.id,
		"capability", name,
		"module", module,
		"depth", len(trace))

	return &Builder{comp: b.comp, config: next, trace: trace}, nil
}

// Chain applies calls fluently, stopping at the first error.
//
//	b, err := compose.ChainFrom(b).Call("withUser", args).Call("withRoute", nil).Result()
type Chain struct {
	b   *Builder
	err error
}

// ChainFrom starts a chain at b.
func ChainFrom(b *Builder) *Chain {
	return &Chain{b: b}
}

// Call applies an operation by name unless an earlier step failed.
func (c *Chain) Call(name string, args ir.IRObject) *Chain {
	if c.err != nil {
		return c
	}
	next, err := c.b.Call(name, args)
	return &Chain{b: next, err: err}
}

// Invoke applies an operation by key unless an earlier step failed.
func (c *Chain) Invoke(key Key, args ir.IRObject) *Chain {
	if c.err != nil {
		return c
	}
	next, err := c.b.Invoke(key, args)
	return &Chain{b: next, err: err}
}

// Result returns the last builder, or the first error.
func (c *Chain) Result() (*Builder, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.b, nil
}

// Lookup reads a typed configuration value. T may be string, int64, int,
// bool, ir.IRObject, ir.IRArray or ir.IRValue.
func Lookup[T any](b *Builder, path string) (T, error) {
	var zero T
	if err := b.ready(); err != nil {
		return zero, err
	}

	v, ok := b.config.Lookup(path)
	if !ok {
		return zero, &Error{
			Code:    CodeMissingConfigField,
			Message: fmt.Sprintf("config field %q is not set", path),
			Fields:  []string{path},
		}
	}

	mismatch := func() (T, error) {
		return zero, &Error{
			Code:    CodeInvalidConfigField,
			Message: fmt.Sprintf("config field %q is %s, not %T", path, ir.TypeName(v), zero),
			Fields:  []string{path},
		}
	}

	out := zero
	switch p := any(&out).(type) {
	case *string:
		s, ok := v.(ir.IRString)
		if !ok {
			return mismatch()
		}
		*p = string(s)
	case *int64:
		n, ok := v.(ir.IRInt)
		if !ok {
			return mismatch()
		}
		*p = int64(n)
	case *int:
		n, ok := v.(ir.IRInt)
		if !ok {
			return mismatch()
		}
		*p = int(n)
	case *bool:
		bv, ok := v.(ir.IRBool)
		if !ok {
			return mismatch()
		}
		*p = bool(bv)
	case *ir.IRObject:
		obj, ok := v.(ir.IRObject)
		if !ok {
			return mismatch()
		}
		*p = obj.Clone()
	case *ir.IRArray:
		arr, ok := v.(ir.IRArray)
		if !ok {
			return mismatch()
		}
		*p = ir.Clone(arr).(ir.IRArray)
	case *ir.IRValue:
		*p = ir.Clone(v)
	default:
		return zero, &Error{
			Code:    CodeInvalidConfigField,
			Message: fmt.Sprintf("unsupported lookup type %T", zero),
			Fields:  []string{path},
		}
	}
	return out, nil
}
