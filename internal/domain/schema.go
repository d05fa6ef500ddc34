// Package domain defines the core interfaces and types for Heron.
package domain

import "fmt"

// Record is one raw input row: a mapping from field names to scalar
// values (strings for categorical fields, numbers for numeric fields).
// Records are immutable once submitted; callers must not rely on any
// field iteration order.
type Record map[string]any

// FieldKind distinguishes categorical and numeric schema fields.
type FieldKind string

const (
	FieldCategorical FieldKind = "categorical"
	FieldNumeric     FieldKind = "numeric"
)

// UnknownPolicy controls how the encoder treats a categorical value
// that is not in the field's vocabulary.
type UnknownPolicy string

const (
	// UnknownError rejects unseen categories with ErrSchemaMismatch.
	UnknownError UnknownPolicy = "error"

	// UnknownIgnore encodes unseen categories as an all-zero block,
	// matching the common one-hot encoder default.
	UnknownIgnore UnknownPolicy = "ignore"
)

// FieldSpec describes one schema field: either a categorical field with
// a fixed vocabulary, or a numeric field with standardization
// parameters fixed at artifact-build time.
type FieldSpec struct {
	Name string    `json:"name"`
	Kind FieldKind `json:"kind"`

	// Categorical: one-hot vocabulary in encoding order.
	Vocabulary []string `json:"vocabulary,omitempty"`

	// Numeric: standardization parameters and fill value for missing
	// inputs. Fill is applied before scaling.
	Mean  float64 `json:"mean,omitempty"`
	Scale float64 `json:"scale,omitempty"`
	Fill  float64 `json:"fill,omitempty"`
}

// Width returns the number of vector slots this field occupies.
func (f *FieldSpec) Width() int {
	if f.Kind == FieldCategorical {
		return len(f.Vocabulary)
	}
	return 1
}

// Schema is the ordered set of recognized fields. It is established at
// artifact-build time and read-only at serving time; encoded vector
// layout is fixed by the field order here, never by Record order.
type Schema struct {
	Fields  []FieldSpec   `json:"fields"`
	Unknown UnknownPolicy `json:"unknownPolicy,omitempty"`
}

// Width returns the total encoded vector length.
func (s *Schema) Width() int {
	w := 0
	for i := range s.Fields {
		w += s.Fields[i].Width()
	}
	return w
}

// Field returns the spec for a named field.
func (s *Schema) Field(name string) (*FieldSpec, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Validate checks structural soundness of the schema itself.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q: duplicate name", f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case FieldCategorical:
			if len(f.Vocabulary) == 0 {
				return fmt.Errorf("field %q: categorical field needs a vocabulary", f.Name)
			}
		case FieldNumeric:
			if f.Scale == 0 {
				return fmt.Errorf("field %q: numeric scale must be non-zero", f.Name)
			}
		default:
			return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
		}
	}
	if s.Unknown != "" && s.Unknown != UnknownError && s.Unknown != UnknownIgnore {
		return fmt.Errorf("unknown-category policy %q is not recognized", s.Unknown)
	}
	return nil
}

// UnknownPolicyOrDefault returns the configured policy. Unset means
// UnknownError.
func (s *Schema) UnknownPolicyOrDefault() UnknownPolicy {
	if s.Unknown == "" {
		return UnknownError
	}
	return s.Unknown
}
