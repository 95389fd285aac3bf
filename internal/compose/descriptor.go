package compose

import (
	"github.com/roach88/modkit/internal/ir"
)

// Operation implements one capability. It returns a configuration patch
// that is deep-merged into the calling builder's configuration to form
// the derived builder. A nil patch leaves configuration unchanged.
type Operation func(call Call) (ir.IRObject, error)

// Call is what an operation sees when it is invoked.
type Call struct {
	Capability string
	Module     string
	Args       ir.IRObject
	// Config is a copy of the builder's configuration; mutating it has no
	// effect.
	Config ir.IRObject
}

// Capability is one operation contributed by a module.
type Capability struct {
	Sig ir.CapabilitySig
	Fn  Operation
}

// Op is shorthand for a capability with no declared arguments.
func Op(name string, fn Operation) Capability {
	return Capability{Sig: ir.CapabilitySig{Name: name, Args: []ir.NamedArg{}}, Fn: fn}
}

// Contribution is what a module's init produces: the operations it adds to
// the builder and the configuration fields it requires or injects.
type Contribution struct {
	Capabilities []Capability
	Config       []ir.ConfigField
}

// InitFunc lazily produces a module's contribution. It runs once per
// registration.
type InitFunc func() (Contribution, error)

// Descriptor is an immutable module definition.
type Descriptor struct {
	id   ID
	init InitFunc
	spec *ir.ModuleSpec
}

// New creates a descriptor. Validation is deferred to registration so a
// malformed descriptor is reported together with the rest of the list.
func New(name string, init InitFunc) *Descriptor {
	return &Descriptor{id: NewID(name), init: init}
}

// ID returns the descriptor's opaque identity.
func (d *Descriptor) ID() ID {
	return d.id
}

// Name returns the module name.
func (d *Descriptor) Name() string {
	return d.id.name
}

// Spec returns the declarative spec the descriptor was built from, or nil
// for descriptors created with New.
func (d *Descriptor) Spec() *ir.ModuleSpec {
	return d.spec
}

// Key returns a typed handle for one of this module's capabilities.
// Builder.Invoke reports the owning module when the key's module was not
// registered.
func (d *Descriptor) Key(capability string) Key {
	return Key{module: d.id, capability: capability}
}

// Key identifies a capability together with the module expected to
// provide it.
type Key struct {
	module     ID
	capability string
}

// Module returns the module identity the key belongs to.
func (k Key) Module() ID {
	return k.module
}

// Capability returns the operation name.
func (k Key) Capability() string {
	return k.capability
}

// String renders the key as module.capability.
func (k Key) String() string {
	return k.module.name + "." + k.capability
}
