// Package encoder transforms raw records into fixed-length numeric
// vectors using a fitted schema.
package encoder

import (
	"fmt"

	"github.com/heron-analytics/heron/internal/domain"
)

// Encode produces the encoded vector for a record. Categorical fields
// one-hot expand against their fixed vocabulary; numeric fields
// standardize as (value - mean) / scale, with the schema's fill value
// substituted for missing inputs. Output slots follow schema field
// order regardless of record field order.
//
// The vector length is exactly schema.Width() on success; any schema
// drift (absent field, wrong type, unseen category under the "error"
// policy) fails with domain.ErrSchemaMismatch.
func Encode(rec domain.Record, schema *domain.Schema) ([]float64, error) {
	if schema == nil || len(schema.Fields) == 0 {
		return nil, fmt.Errorf("%w: schema is empty", domain.ErrSchemaMismatch)
	}

	vec := make([]float64, 0, schema.Width())
	policy := schema.UnknownPolicyOrDefault()

	for i := range schema.Fields {
		f := &schema.Fields[i]

		switch f.Kind {
		case domain.FieldCategorical:
			block, err := encodeCategorical(rec, f, policy)
			if err != nil {
				return nil, err
			}
			vec = append(vec, block...)

		case domain.FieldNumeric:
			v, err := encodeNumeric(rec, f)
			if err != nil {
				return nil, err
			}
			vec = append(vec, v)

		default:
			return nil, fmt.Errorf("%w: field %q has unknown kind %q", domain.ErrSchemaMismatch, f.Name, f.Kind)
		}
	}

	return vec, nil
}

// ValidateRecord rejects records carrying fields the schema does not
// recognize. Run at the API boundary so bad input never reaches the
// encoder silently coerced.
func ValidateRecord(rec domain.Record, schema *domain.Schema) error {
	for name := range rec {
		if _, ok := schema.Field(name); !ok {
			return fmt.Errorf("%w: unknown field %q", domain.ErrSchemaMismatch, name)
		}
	}
	return nil
}

func encodeCategorical(rec domain.Record, f *domain.FieldSpec, policy domain.UnknownPolicy) ([]float64, error) {
	raw, ok := rec[f.Name]
	if !ok {
		return nil, fmt.Errorf("%w: field %q is absent", domain.ErrSchemaMismatch, f.Name)
	}

	val, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: field %q expects a category string, got %T", domain.ErrSchemaMismatch, f.Name, raw)
	}

	block := make([]float64, len(f.Vocabulary))
	found := false
	for i, v := range f.Vocabulary {
		if v == val {
			block[i] = 1
			found = true
			break
		}
	}

	if !found && policy == domain.UnknownError {
		return nil, fmt.Errorf("%w: field %q: category %q not in vocabulary", domain.ErrSchemaMismatch, f.Name, val)
	}
	// UnknownIgnore: all-zero block stands.

	return block, nil
}

func encodeNumeric(rec domain.Record, f *domain.FieldSpec) (float64, error) {
	var val float64
	switch v := rec[f.Name].(type) {
	case nil:
		// Absent or explicit null: documented fill policy.
		val = f.Fill
	case float64:
		val = v
	case float32:
		val = float64(v)
	case int:
		val = float64(v)
	case int64:
		val = float64(v)
	default:
		return 0, fmt.Errorf("%w: field %q expects a number, got %T", domain.ErrSchemaMismatch, f.Name, v)
	}

	return (val - f.Mean) / f.Scale, nil
}
