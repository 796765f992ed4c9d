package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrichment-service/internal/common/errors"
	"enrichment-service/internal/enrichment"
)

// The worked example from the company-profile integration: a source record
// with a populated name and a missing address, enriched by a provider that
// knows both.
var (
	acmeSource = map[string]interface{}{
		"name":    "Acme",
		"address": nil,
	}
	acmeMapped = map[string]interface{}{
		"name":    "Acme Corp",
		"address": "123 Main St",
	}
)

func TestEngine_Enhance(t *testing.T) {
	engine := NewEngine()

	result, changed, err := engine.Apply(enrichment.PolicyEnhance, acmeSource, acmeMapped, nil)
	require.NoError(t, err)

	assert.Equal(t, "Acme", result["name"], "populated source field is never overwritten")
	assert.Equal(t, "123 Main St", result["address"], "gap is filled from the provider")
	assert.Equal(t, 1, changed)
}

func TestEngine_Merge(t *testing.T) {
	engine := NewEngine()

	result, changed, err := engine.Apply(enrichment.PolicyMerge, acmeSource, acmeMapped, nil)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", result["name"], "provider wins where present")
	assert.Equal(t, "123 Main St", result["address"])
	assert.Equal(t, 2, changed)
}

func TestEngine_MergeFallsBackToSource(t *testing.T) {
	engine := NewEngine()

	source := map[string]interface{}{"name": "Acme", "phone": "555-0100"}
	mapped := map[string]interface{}{"name": "Acme Corp", "phone": ""}

	result, _, err := engine.Apply(enrichment.PolicyMerge, source, mapped, nil)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", result["name"])
	assert.Equal(t, "555-0100", result["phone"], "absent provider value falls back to source")
}

func TestEngine_Replace(t *testing.T) {
	engine := NewEngine()

	source := map[string]interface{}{"name": "Acme", "internal_note": "keep"}
	result, changed, err := engine.Apply(enrichment.PolicyReplace, source, acmeMapped, nil)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", result["name"])
	assert.Equal(t, "123 Main St", result["address"])
	_, kept := result["internal_note"]
	assert.False(t, kept, "source fields are ignored for content")
	assert.Equal(t, 2, changed, "diff against source still drives the count")
}

func TestEngine_RawIsRejected(t *testing.T) {
	engine := NewEngine()

	_, _, err := engine.Apply(enrichment.PolicyRaw, acmeSource, acmeMapped, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestEngine_UnknownPolicyIsRejected(t *testing.T) {
	engine := NewEngine()

	_, _, err := engine.Apply(enrichment.MergePolicy("overwrite"), acmeSource, acmeMapped, nil)
	require.Error(t, err)
}

func TestEngine_ZeroValuesArePresent(t *testing.T) {
	engine := NewEngine()

	source := map[string]interface{}{
		"employee_count": 0,     // provided: explicitly zero
		"public":         false, // provided: explicitly false
	}
	mapped := map[string]interface{}{
		"employee_count": 250,
		"public":         true,
	}

	result, changed, err := engine.Apply(enrichment.PolicyEnhance, source, mapped, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result["employee_count"], "explicit zero survives ENHANCE")
	assert.Equal(t, false, result["public"], "explicit false survives ENHANCE")
	assert.Equal(t, 0, changed)
}

func TestEngine_EmptyStringIsAbsent(t *testing.T) {
	engine := NewEngine()

	source := map[string]interface{}{"website": ""}
	mapped := map[string]interface{}{"website": "https://acme.com"}

	result, changed, err := engine.Apply(enrichment.PolicyEnhance, source, mapped, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://acme.com", result["website"])
	assert.Equal(t, 1, changed)
}

func TestEngine_NilSource(t *testing.T) {
	engine := NewEngine()

	result, changed, err := engine.Apply(enrichment.PolicyEnhance, nil, acmeMapped, nil)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", result["name"])
	assert.Equal(t, 2, changed, "every populated field counts as newly enriched")
}

type companyShape struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Website string `json:"website,omitempty"`
	hidden  string //nolint:unused // presence documents the introspection rule
	Skipped string `json:"-"`
}

func TestEngine_TargetShapeRestrictsFields(t *testing.T) {
	engine := NewEngine()

	source := map[string]interface{}{
		"name":      "Acme",
		"unrelated": "stays out of the result",
	}
	mapped := map[string]interface{}{
		"name":    "Acme Corp",
		"address": "123 Main St",
	}

	result, _, err := engine.Apply(enrichment.PolicyEnhance, source, mapped, companyShape{})
	require.NoError(t, err)

	assert.Equal(t, "Acme", result["name"])
	assert.Equal(t, "123 Main St", result["address"])
	_, present := result["unrelated"]
	assert.False(t, present, "only declared shape fields participate")
}

func TestEngine_TargetShapeAcceptsPointer(t *testing.T) {
	engine := NewEngine()

	result, _, err := engine.Apply(enrichment.PolicyMerge, nil, acmeMapped, &companyShape{})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", result["name"])
}

func TestEngine_UndeclaredMappedFieldNamesOffender(t *testing.T) {
	engine := NewEngine()

	mapped := map[string]interface{}{
		"name":     "Acme Corp",
		"industry": "manufacturing",
	}

	_, _, err := engine.Apply(enrichment.PolicyMerge, nil, mapped, companyShape{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeMapping))
	assert.Contains(t, err.Error(), `"industry"`)
}

func TestEngine_NonStructShapeIsRejected(t *testing.T) {
	engine := NewEngine()

	_, _, err := engine.Apply(enrichment.PolicyMerge, nil, acmeMapped, "not a shape")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestPresent(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{"nil", nil, false},
		{"empty string", "", false},
		{"string", "x", true},
		{"zero int", 0, true},
		{"false", false, true},
		{"zero float", 0.0, true},
		{"empty map", map[string]interface{}{}, false},
		{"populated map", map[string]interface{}{"k": 1}, true},
		{"empty slice", []interface{}{}, false},
		{"populated slice", []interface{}{1}, true},
		{"nil pointer", (*int)(nil), false},
		{"pointer to zero", new(int), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Present(tt.value))
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("map passes through", func(t *testing.T) {
		doc := map[string]interface{}{"k": 1}
		got, err := Normalize(doc)
		require.NoError(t, err)
		assert.Equal(t, doc, got)
	})

	t.Run("nil pointer fields are absent", func(t *testing.T) {
		type record struct {
			Name  *string `json:"name"`
			Count *int    `json:"count"`
		}
		name := "Acme"

		got, err := Normalize(record{Name: &name})
		require.NoError(t, err)

		assert.Equal(t, "Acme", got["name"])
		_, present := got["count"]
		assert.False(t, present)
	})

	t.Run("pointer to zero value is present", func(t *testing.T) {
		type record struct {
			Count *int `json:"count"`
		}

		got, err := Normalize(record{Count: new(int)})
		require.NoError(t, err)
		assert.Equal(t, 0, got["count"])
	})

	t.Run("nil yields empty document", func(t *testing.T) {
		got, err := Normalize(nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("non-struct is rejected", func(t *testing.T) {
		_, err := Normalize(42)
		assert.Error(t, err)
	})
}
