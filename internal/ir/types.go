package ir

import (
	"encoding/json"
	"fmt"
)

// ModuleSpec is the declarative form of a module descriptor: the
// capabilities it adds to a composite builder and the configuration fields
// it requires or injects.
type ModuleSpec struct {
	Name         string          `json:"name"`
	Purpose      string          `json:"purpose,omitempty"`
	Capabilities []CapabilitySig `json:"capabilities"`
	Config       []ConfigField   `json:"config"`
}

// CapabilitySig describes one operation a module contributes.
type CapabilitySig struct {
	Name string     `json:"name"`
	Args []NamedArg `json:"args"`
	// Writes is the dotted configuration path the operation merges its
	// arguments into. Empty means the operation leaves configuration as is.
	Writes string `json:"writes,omitempty"`
}

// NamedArg is a named, typed argument.
type NamedArg struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ConfigField is one field of a configuration contribution.
type ConfigField struct {
	Path     string  `json:"path"`
	Type     string  `json:"type"`
	Required bool    `json:"required,omitempty"`
	Default  IRValue `json:"default,omitempty"`
	// Module is the module that declared the field. Set by the composer;
	// empty for base fields and in specs.
	Module string `json:"module,omitempty"`
}

// UnmarshalJSON decodes Default through the IR value rules.
func (f *ConfigField) UnmarshalJSON(data []byte) error {
	type plain ConfigField
	var raw struct {
		plain
		Default json.RawMessage `json:"default,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = ConfigField(raw.plain)
	if len(raw.Default) > 0 {
		v, err := unmarshalIRValue(raw.Default)
		if err != nil {
			return fmt.Errorf("config field %q default: %w", raw.Path, err)
		}
		f.Default = v
	}
	return nil
}

// CapabilityEntry is a capability as exposed by a composition.
type CapabilityEntry struct {
	Name   string     `json:"name"`
	Module string     `json:"module"`
	Args   []NamedArg `json:"args"`
	Writes string     `json:"writes,omitempty"`
}

// Surface is the externally visible shape of a composition: which modules
// were registered in which order, the union of their capabilities and the
// merged configuration shape.
type Surface struct {
	Fingerprint  string            `json:"fingerprint"`
	Modules      []string          `json:"modules"`
	Capabilities []CapabilityEntry `json:"capabilities"`
	Shape        []ConfigField     `json:"shape"`
}

// OperationNames returns capability names in surface order.
func (s Surface) OperationNames() []string {
	names := make([]string, len(s.Capabilities))
	for i, c := range s.Capabilities {
		names[i] = c.Name
	}
	return names
}

// canonicalObject renders the surface, minus its fingerprint, as an IRObject
// for hashing and golden files.
func (s Surface) canonicalObject() IRObject {
	modules := make(IRArray, len(s.Modules))
	for i, m := range s.Modules {
		modules[i] = IRString(m)
	}

	caps := make(IRArray, len(s.Capabilities))
	for i, c := range s.Capabilities {
		entry := IRObject{
			"name":   IRString(c.Name),
			"module": IRString(c.Module),
			"args":   namedArgsObject(c.Args),
		}
		if c.Writes != "" {
			entry["writes"] = IRString(c.Writes)
		}
		caps[i] = entry
	}

	shape := make(IRArray, len(s.Shape))
	for i, f := range s.Shape {
		shape[i] = f.canonicalObject()
	}

	return IRObject{
		"modules":      modules,
		"capabilities": caps,
		"shape":        shape,
	}
}

// CanonicalObject is canonicalObject with the fingerprint included.
func (s Surface) CanonicalObject() IRObject {
	obj := s.canonicalObject()
	obj["fingerprint"] = IRString(s.Fingerprint)
	return obj
}

func (f ConfigField) canonicalObject() IRObject {
	obj := IRObject{
		"path":     IRString(f.Path),
		"type":     IRString(f.Type),
		"required": IRBool(f.Required),
	}
	if f.Default != nil {
		obj["default"] = f.Default
	}
	if f.Module != "" {
		obj["module"] = IRString(f.Module)
	}
	return obj
}

func namedArgsObject(args []NamedArg) IRObject {
	obj := make(IRObject, len(args))
	for _, a := range args {
		obj[a.Name] = IRString(a.Type)
	}
	return obj
}

// Snapshot is a recorded composition surface.
type Snapshot struct {
	ID          string   `json:"id"`
	Seq         int64    `json:"seq"`
	Fingerprint string   `json:"fingerprint"`
	Modules     []string `json:"modules"`
	Surface     Surface  `json:"surface"`
	CreatedBy   string   `json:"created_by,omitempty"`
	IRVersion   string   `json:"ir_version"`
}

// CallRecord is one call applied to a builder, as stored alongside its
// composition snapshot. Position is zero-based call order.
type CallRecord struct {
	Position   int64    `json:"position"`
	Capability string   `json:"capability"`
	Module     string   `json:"module"`
	Args       IRObject `json:"args"`
}
