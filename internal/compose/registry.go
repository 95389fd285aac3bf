package compose

import (
	"sync"

	"github.com/roach88/modkit/internal/ir"
)

// Registry is the build-once lifecycle around Compose: register once,
// build one builder, then share it. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	opts    []Option
	comp    *Composition
	builder *Builder
}

// NewRegistry creates an empty registry. Options are passed to Compose.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{opts: opts}
}

// Register composes modules. It succeeds at most once.
func (r *Registry) Register(modules ...*Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.comp != nil {
		return newError(CodeAlreadyComposed, "modules already registered")
	}
	comp, err := Compose(modules, r.opts...)
	if err != nil {
		return err
	}
	r.comp = comp
	return nil
}

// NewBuilder creates the registry's builder. It fails with NOT_READY before
// Register and with ALREADY_COMPOSED once a builder exists.
func (r *Registry) NewBuilder(overrides ir.IRObject) (*Builder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.comp == nil {
		return nil, newError(CodeNotReady, "register modules before creating a builder")
	}
	if r.builder != nil {
		return nil, newError(CodeAlreadyComposed, "builder already created")
	}
	b, err := r.comp.NewBuilder(overrides)
	if err != nil {
		return nil, err
	}
	r.builder = b
	return b, nil
}

// Builder returns the builder created by NewBuilder.
func (r *Registry) Builder() (*Builder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.builder == nil {
		return nil, newError(CodeNotReady, "no builder has been created")
	}
	return r.builder, nil
}

// Composition returns the registered composition, or nil before Register.
func (r *Registry) Composition() *Composition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.comp
}
