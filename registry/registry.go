package registry

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/tetratelabs/wazero/api"

	"github.com/hostbridge/wasm-bridge/errors"
)

//go:embed registry.toml
var embedded []byte

// Kind is a high-level parameter or return type in the catalog. Kinds keep
// the TOML readable; the wire lowering lives in ParamTypes and ResultTypes.
type Kind string

const (
	KindString  Kind = "string"  // (i32 ptr, i32 len) in, length-prefixed i32 ptr out
	KindInteger Kind = "integer" // i64
	KindNumber  Kind = "number"  // f64
	KindBoolean Kind = "boolean" // i32, 0 or 1
	KindPointer Kind = "pointer" // raw i32: offset, size, or handle, passed unconverted
	KindVoid    Kind = "void"    // return position only
)

// ParamTypes returns the wire types one parameter of this kind lowers to.
func (k Kind) ParamTypes() ([]api.ValueType, error) {
	switch k {
	case KindString:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
	case KindInteger:
		return []api.ValueType{api.ValueTypeI64}, nil
	case KindNumber:
		return []api.ValueType{api.ValueTypeF64}, nil
	case KindBoolean, KindPointer:
		return []api.ValueType{api.ValueTypeI32}, nil
	default:
		return nil, fmt.Errorf("kind %q is not a parameter kind", k)
	}
}

// ResultTypes returns the wire types a return of this kind lowers to.
// A string return is a single i32: a pointer to a length-prefixed buffer
// the host wrote through the guest's allocator.
func (k Kind) ResultTypes() ([]api.ValueType, error) {
	switch k {
	case KindVoid:
		return nil, nil
	case KindString, KindBoolean, KindPointer:
		return []api.ValueType{api.ValueTypeI32}, nil
	case KindInteger:
		return []api.ValueType{api.ValueTypeI64}, nil
	case KindNumber:
		return []api.ValueType{api.ValueTypeF64}, nil
	default:
		return nil, fmt.Errorf("kind %q is not a return kind", k)
	}
}

// Signature is one catalogued capability function. Aliases are additional
// import names resolving to the same binding with the same signature.
type Signature struct {
	Name        string   `toml:"name"`
	Module      string   `toml:"module"`
	Category    string   `toml:"category"`
	Params      []Kind   `toml:"params"`
	Return      Kind     `toml:"returns"`
	Aliases     []string `toml:"aliases,omitempty"`
	Description string   `toml:"description,omitempty"`

	wireParams  []api.ValueType
	wireResults []api.ValueType
}

// ImportNames returns every name this function is importable under:
// the canonical name first, then aliases in declaration order.
func (s *Signature) ImportNames() []string {
	names := make([]string, 0, 1+len(s.Aliases))
	names = append(names, s.Name)
	names = append(names, s.Aliases...)
	return names
}

// WireParams returns the lowered parameter types. Valid after Load.
func (s *Signature) WireParams() []api.ValueType { return s.wireParams }

// WireResults returns the lowered result types. Valid after Load.
func (s *Signature) WireResults() []api.ValueType { return s.wireResults }

// WireString renders the lowered signature for diagnostics,
// e.g. "(i32, i32) -> i32".
func (s *Signature) WireString() string {
	return FormatWire(s.wireParams, s.wireResults)
}

func (s *Signature) lower() error {
	s.wireParams = nil
	for _, p := range s.Params {
		types, err := p.ParamTypes()
		if err != nil {
			return err
		}
		s.wireParams = append(s.wireParams, types...)
	}
	results, err := s.Return.ResultTypes()
	if err != nil {
		return err
	}
	s.wireResults = results
	return nil
}

// FormatWire renders a wire signature for diagnostics.
func FormatWire(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(p))
	}
	b.WriteString(") -> ")
	switch len(results) {
	case 0:
		b.WriteString("nil")
	case 1:
		b.WriteString(api.ValueTypeName(results[0]))
	default:
		b.WriteByte('(')
		for i, r := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(api.ValueTypeName(r))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Catalog is a loaded, validated capability contract.
type Catalog struct {
	Version string

	funcs  []*Signature
	byName map[string]map[string]*Signature // module -> import name -> signature
}

type catalogFile struct {
	Meta struct {
		Version string `toml:"version"`
	} `toml:"meta"`
	Functions []*Signature `toml:"functions"`
}

// Load parses and validates a catalog. Every entry must carry a module,
// a unique set of import names within that module, parameter kinds that
// lower to wire types, and a return kind.
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "catalog parse failed")
	}
	if len(file.Functions) == 0 {
		return nil, errors.InvalidData(errors.PhaseValidate, "catalog declares no functions")
	}

	cat := &Catalog{
		Version: file.Meta.Version,
		funcs:   file.Functions,
		byName:  make(map[string]map[string]*Signature),
	}

	for _, sig := range file.Functions {
		if sig.Name == "" || sig.Module == "" {
			return nil, errors.InvalidData(errors.PhaseValidate,
				fmt.Sprintf("entry %q in module %q: name and module are required", sig.Name, sig.Module))
		}
		if sig.Return == "" {
			return nil, errors.InvalidData(errors.PhaseValidate,
				fmt.Sprintf("%s#%s: missing returns", sig.Module, sig.Name))
		}
		if err := sig.lower(); err != nil {
			return nil, errors.New(errors.PhaseValidate, errors.KindInvalidData).
				Func(sig.Module + "#" + sig.Name).
				Cause(err).
				Detail("signature does not lower to wire types").
				Build()
		}

		names := cat.byName[sig.Module]
		if names == nil {
			names = make(map[string]*Signature)
			cat.byName[sig.Module] = names
		}
		for _, name := range sig.ImportNames() {
			if name == "" {
				return nil, errors.InvalidData(errors.PhaseValidate,
					fmt.Sprintf("%s#%s: empty alias", sig.Module, sig.Name))
			}
			if prev, dup := names[name]; dup {
				return nil, errors.InvalidData(errors.PhaseValidate,
					fmt.Sprintf("%s#%s: import name already claimed by %s", sig.Module, name, prev.Name))
			}
			names[name] = sig
		}
	}

	return cat, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the catalog parsed from the embedded registry.toml.
// The embedded catalog is part of the build; a parse failure here is a
// packaging defect, not a runtime condition.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(embedded)
	})
	return defaultCat, defaultErr
}

// Functions returns catalogued functions in declaration order.
func (c *Catalog) Functions() []*Signature {
	return c.funcs
}

// Lookup resolves a wire module and import name, aliases included.
func (c *Catalog) Lookup(module, name string) (*Signature, bool) {
	sig, ok := c.byName[module][name]
	return sig, ok
}

// Modules returns the wire module names in sorted order.
func (c *Catalog) Modules() []string {
	mods := make([]string, 0, len(c.byName))
	for m := range c.byName {
		mods = append(mods, m)
	}
	sort.Strings(mods)
	return mods
}

// Len is the number of canonical functions, aliases excluded.
func (c *Catalog) Len() int { return len(c.funcs) }

// NameCount is the number of importable names, aliases included.
func (c *Catalog) NameCount() int {
	n := 0
	for _, names := range c.byName {
		n += len(names)
	}
	return n
}
