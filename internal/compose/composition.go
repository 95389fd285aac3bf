package compose

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/modkit/internal/ir"
)

// capEntry is a registered capability with its owner.
type capEntry struct {
	sig    ir.CapabilitySig
	fn     Operation
	module ID
}

// Composition is the immutable result of registering an ordered module
// list: the union of capabilities and the merged configuration shape.
// It is safe for concurrent use.
type Composition struct {
	id      string
	modules []*Descriptor
	caps    map[string]capEntry
	ops     []string
	shape   []ir.ConfigField
	surface ir.Surface
	logger  *slog.Logger

	// defaults holds the fields carrying a default in contribution order,
	// one entry per path, so later declarations layer over earlier ones.
	defaults []ir.ConfigField
}

// Compose registers modules in order and returns the composition.
//
// Steps:
//  1. reject an empty list, nil or malformed descriptors and duplicates
//  2. run each init exactly once, in list order
//  3. union capabilities, rejecting any name contributed twice
//  4. merge configuration fields over the base shape, later fields
//     replacing earlier ones with the same path
//
// No init runs if the list itself is malformed.
func Compose(modules []*Descriptor, opts ...Option) (*Composition, error) {
	o := buildOptions(opts)

	if len(modules) == 0 {
		return nil, newError(CodeEmptyRegistration, "at least one module is required")
	}
	if err := checkDescriptors(modules); err != nil {
		return nil, err
	}

	c := &Composition{
		modules: slices.Clone(modules),
		caps:    make(map[string]capEntry),
		shape:   baseShape(),
		logger:  o.logger,
	}
	index := make(map[string]int, len(c.shape))
	for i, f := range c.shape {
		index[f.Path] = i
	}

	for _, d := range modules {
		contrib, err := d.init()
		if err != nil {
			return nil, &Error{
				Code:    CodeInitFailed,
				Message: "module init failed",
				Module:  d.Name(),
				Err:     err,
			}
		}

		if err := c.addCapabilities(d, contrib.Capabilities); err != nil {
			return nil, err
		}
		if err := c.addConfig(d, contrib.Config, index); err != nil {
			return nil, err
		}

		c.logger.Debug("module initialised",
			"module", d.Name(),
			"capabilities", len(contrib.Capabilities),
			"config_fields", len(contrib.Config))
	}

	if err := validateNesting(c.shape); err != nil {
		return nil, err
	}

	c.ops = make([]string, 0, len(c.caps))
	for name := range c.caps {
		c.ops = append(c.ops, name)
	}
	slices.Sort(c.ops)

	if err := c.buildSurface(); err != nil {
		return nil, err
	}
	c.id = o.idGen.Generate()

	c.logger.Info("composition ready",
		"id", c.id,
		"modules", strings.Join(c.surface.Modules, ","),
		"capabilities", len(c.ops),
		"fingerprint", c.surface.Fingerprint)

	return c, nil
}

// checkDescriptors validates the list before any init runs.
func checkDescriptors(modules []*Descriptor) error {
	seenIDs := make(map[ID]bool, len(modules))
	seenNames := make(map[string]bool, len(modules))
	for i, d := range modules {
		if d == nil {
			return newError(CodeInvalidDescriptor, "module at position %d is nil", i)
		}
		if d.Name() == "" {
			return newError(CodeInvalidDescriptor, "module at position %d has an empty name", i)
		}
		if d.init == nil {
			return &Error{Code: CodeInvalidDescriptor, Message: "module has no init", Module: d.Name()}
		}
		if seenIDs[d.id] {
			return &Error{Code: CodeDuplicateModule, Message: "module registered twice", Module: d.Name()}
		}
		if seenNames[d.Name()] {
			return &Error{
				Code:    CodeDuplicateModule,
				Message: fmt.Sprintf("two modules share the name %q", d.Name()),
				Module:  d.Name(),
			}
		}
		seenIDs[d.id] = true
		seenNames[d.Name()] = true
	}
	return nil
}

func (c *Composition) addCapabilities(d *Descriptor, caps []Capability) error {
	for _, capability := range caps {
		name := capability.Sig.Name
		if name == "" {
			return &Error{Code: CodeInvalidDescriptor, Message: "capability with empty name", Module: d.Name()}
		}
		if capability.Fn == nil {
			return &Error{
				Code:       CodeInvalidDescriptor,
				Message:    "capability has no operation",
				Module:     d.Name(),
				Capability: name,
			}
		}
		if err := validateSig(capability.Sig); err != nil {
			return &Error{
				Code:       CodeInvalidDescriptor,
				Message:    err.Error(),
				Module:     d.Name(),
				Capability: name,
			}
		}
		if prev, ok := c.caps[name]; ok {
			return &Error{
				Code:       CodeDuplicateCapability,
				Message:    fmt.Sprintf("capability %q contributed by both %q and %q", name, prev.module.Name(), d.Name()),
				Module:     d.Name(),
				Capability: name,
			}
		}
		c.caps[name] = capEntry{sig: cloneSig(capability.Sig), fn: capability.Fn, module: d.id}
	}
	return nil
}

func (c *Composition) addConfig(d *Descriptor, fields []ir.ConfigField, index map[string]int) error {
	for _, f := range fields {
		if err := validateField(f); err != nil {
			return &Error{
				Code:    CodeInvalidDescriptor,
				Message: err.Error(),
				Module:  d.Name(),
				Fields:  []string{f.Path},
			}
		}
		f.Module = d.Name()
		if f.Default != nil {
			f.Default = ir.Clone(f.Default)
		}

		if i, ok := index[f.Path]; ok {
			c.logger.Warn("config field shadowed",
				"path", f.Path,
				"previous", moduleLabel(c.shape[i].Module),
				"module", d.Name())
			c.shape[i] = f
		} else {
			index[f.Path] = len(c.shape)
			c.shape = append(c.shape, f)
		}

		c.defaults = slices.DeleteFunc(c.defaults, func(prev ir.ConfigField) bool {
			return prev.Path == f.Path
		})
		if f.Default != nil {
			c.defaults = append(c.defaults, f)
		}
	}
	return nil
}

func validateSig(sig ir.CapabilitySig) error {
	seen := make(map[string]bool, len(sig.Args))
	for _, a := range sig.Args {
		if a.Name == "" {
			return fmt.Errorf("argument with empty name")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate argument %q", a.Name)
		}
		seen[a.Name] = true
		if !ir.ValidFieldTypes[a.Type] {
			return fmt.Errorf("argument %q: unknown type %q", a.Name, a.Type)
		}
	}
	if sig.Writes != "" {
		if _, err := ir.SplitPath(sig.Writes); err != nil {
			return fmt.Errorf("writes: %w", err)
		}
	}
	return nil
}

func cloneSig(sig ir.CapabilitySig) ir.CapabilitySig {
	out := sig
	out.Args = slices.Clone(sig.Args)
	if out.Args == nil {
		out.Args = []ir.NamedArg{}
	}
	return out
}

func (c *Composition) buildSurface() error {
	s := ir.Surface{
		Modules:      make([]string, len(c.modules)),
		Capabilities: make([]ir.CapabilityEntry, len(c.ops)),
		Shape:        c.Shape(),
	}
	for i, d := range c.modules {
		s.Modules[i] = d.Name()
	}
	for i, name := range c.ops {
		e := c.caps[name]
		s.Capabilities[i] = ir.CapabilityEntry{
			Name:   name,
			Module: e.module.Name(),
			Args:   e.sig.Args,
			Writes: e.sig.Writes,
		}
	}

	fp, err := ir.SurfaceFingerprint(s)
	if err != nil {
		return &Error{Code: CodeInvalidDescriptor, Message: "surface cannot be fingerprinted", Err: err}
	}
	s.Fingerprint = fp
	c.surface = s
	return nil
}

// ID returns the composition ID.
func (c *Composition) ID() string {
	return c.id
}

// Modules returns module names in registration order.
func (c *Composition) Modules() []string {
	return slices.Clone(c.surface.Modules)
}

// Operations returns the sorted union of capability names.
func (c *Composition) Operations() []string {
	return slices.Clone(c.ops)
}

// Has reports whether some registered module provides the operation.
func (c *Composition) Has(name string) bool {
	_, ok := c.caps[name]
	return ok
}

// Provider returns the module that contributed the operation.
func (c *Composition) Provider(name string) (string, bool) {
	e, ok := c.caps[name]
	if !ok {
		return "", false
	}
	return e.module.Name(), true
}

// Shape returns a copy of the merged configuration shape, base fields first.
func (c *Composition) Shape() []ir.ConfigField {
	out := make([]ir.ConfigField, len(c.shape))
	for i, f := range c.shape {
		out[i] = f
		if f.Default != nil {
			out[i].Default = ir.Clone(f.Default)
		}
	}
	return out
}

// Fingerprint returns the content hash of the surface.
func (c *Composition) Fingerprint() string {
	return c.surface.Fingerprint
}

// Surface returns the externally visible shape of the composition.
func (c *Composition) Surface() ir.Surface {
	s := c.surface
	s.Modules = slices.Clone(s.Modules)
	s.Capabilities = slices.Clone(s.Capabilities)
	s.Shape = c.Shape()
	return s
}

// Snapshot returns the surface as a snapshot ready to be stored.
func (c *Composition) Snapshot(createdBy string) ir.Snapshot {
	s := c.Surface()
	return ir.Snapshot{
		ID:          c.id,
		Fingerprint: s.Fingerprint,
		Modules:     slices.Clone(s.Modules),
		Surface:     s,
		CreatedBy:   createdBy,
		IRVersion:   ir.IRVersion,
	}
}

// NewBuilder resolves the effective configuration and returns a builder
// exposing exactly the composition's operations. It fails, exposing
// nothing, if a required field is missing or a value has the wrong type.
func (c *Composition) NewBuilder(overrides ir.IRObject) (*Builder, error) {
	if c == nil {
		return nil, newError(CodeNotReady, "no composition")
	}

	cfg, err := effectiveConfig(c.defaults, overrides)
	if err != nil {
		return nil, err
	}
	if err := checkConfig(c.shape, cfg); err != nil {
		return nil, err
	}

	c.logger.Debug("builder created", "composition", c.id, "operations", len(c.ops))
	return &Builder{comp: c, config: cfg, trace: []TraceEntry{}}, nil
}
