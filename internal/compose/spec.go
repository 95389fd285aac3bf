package compose

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/modkit/internal/ir"
)

// FromSpec builds a descriptor from a declarative module spec. Each
// capability becomes an operation that checks its arguments against the
// signature and writes them at the signature's Writes path. Capabilities
// without Writes only record themselves in the trace.
func FromSpec(spec *ir.ModuleSpec) *Descriptor {
	frozen := cloneSpec(spec)
	d := New(frozen.Name, func() (Contribution, error) {
		contrib := Contribution{
			Capabilities: make([]Capability, len(frozen.Capabilities)),
			Config:       make([]ir.ConfigField, len(frozen.Config)),
		}
		for i, sig := range frozen.Capabilities {
			contrib.Capabilities[i] = Capability{Sig: cloneSig(sig), Fn: declarativeOp(sig)}
		}
		for i, f := range frozen.Config {
			contrib.Config[i] = f
			if f.Default != nil {
				contrib.Config[i].Default = ir.Clone(f.Default)
			}
		}
		return contrib, nil
	})
	d.spec = frozen
	return d
}

// FromSpecs builds descriptors for specs in order.
func FromSpecs(specs []ir.ModuleSpec) []*Descriptor {
	out := make([]*Descriptor, len(specs))
	for i := range specs {
		out[i] = FromSpec(&specs[i])
	}
	return out
}

func cloneSpec(spec *ir.ModuleSpec) *ir.ModuleSpec {
	out := *spec
	out.Capabilities = make([]ir.CapabilitySig, len(spec.Capabilities))
	for i, c := range spec.Capabilities {
		out.Capabilities[i] = cloneSig(c)
	}
	out.Config = slices.Clone(spec.Config)
	for i, f := range out.Config {
		if f.Default != nil {
			out.Config[i].Default = ir.Clone(f.Default)
		}
	}
	return &out
}

// declarativeOp returns the operation for a declared signature.
func declarativeOp(sig ir.CapabilitySig) Operation {
	return func(call Call) (ir.IRObject, error) {
		if err := checkArgs(sig, call.Args); err != nil {
			return nil, err
		}
		if sig.Writes == "" {
			return nil, nil
		}
		return ir.IRObject{}.SetPath(sig.Writes, call.Args)
	}
}

// checkArgs verifies args against sig: every declared argument present
// with its type, nothing undeclared.
func checkArgs(sig ir.CapabilitySig, args ir.IRObject) error {
	declared := make(map[string]bool, len(sig.Args))
	var problems []string
	var fields []string
	for _, a := range sig.Args {
		declared[a.Name] = true
		v, ok := args[a.Name]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("missing argument %q (%s)", a.Name, a.Type))
			fields = append(fields, a.Name)
		case !ir.MatchesType(v, a.Type):
			problems = append(problems, fmt.Sprintf("argument %q is %s, want %s", a.Name, ir.TypeName(v), a.Type))
			fields = append(fields, a.Name)
		}
	}
	for _, k := range args.SortedKeys() {
		if !declared[k] {
			problems = append(problems, fmt.Sprintf("unknown argument %q", k))
			fields = append(fields, k)
		}
	}
	if len(problems) > 0 {
		return &Error{
			Code:       CodeInvalidArgument,
			Message:    strings.Join(problems, "; "),
			Capability: sig.Name,
			Fields:     fields,
		}
	}
	return nil
}
