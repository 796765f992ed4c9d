// Package merge applies the four enrichment merge policies between a
// caller-supplied source object and a mapped provider object.
//
// The engine is generic: the field set it operates over comes either from a
// runtime-introspected target shape (any struct, enumerated via reflection)
// or, when no shape is given, from the union of the two documents' keys.
// There are no per-DTO merge implementations.
//
// Presence is key-based for documents and pointer-based for structs: a map
// key that exists with value 0, false or a non-empty string is "provided",
// while a missing key, a nil value or an empty string/slice/map is "absent".
// A nil pointer field on a struct is absent; a non-nil pointer to a zero
// value is present. This keeps zero values distinguishable from unset, which
// ENHANCE and MERGE depend on.
package merge

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"enrichment-service/internal/common/errors"
	"enrichment-service/internal/enrichment"
)

// Engine applies merge policies. It is stateless and safe for concurrent use.
type Engine struct{}

// NewEngine creates a merge engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Apply merges source and mapped according to policy over the declared
// fields of targetShape and returns the merged document together with the
// number of fields whose value differs from (or is newly populated relative
// to) the source.
//
// targetShape may be nil, in which case the field set is the union of the
// two documents' keys, or any struct (or pointer to struct), in which case
// its JSON field names define the field set. A mapped provider field the
// shape does not declare is an introspection error naming that field.
//
// Policy RAW never reaches the engine; the pipeline returns the unmapped
// provider payload directly. Calling Apply with RAW is an error.
func (e *Engine) Apply(policy enrichment.MergePolicy, source, mapped map[string]interface{}, targetShape interface{}) (map[string]interface{}, int, error) {
	if policy == enrichment.PolicyRaw {
		return nil, 0, errors.ValidationError("merge engine is not applicable to the raw policy")
	}
	if !policy.Valid() {
		return nil, 0, errors.ValidationError(fmt.Sprintf("unknown merge policy: %q", policy))
	}

	fields, err := e.fieldSet(source, mapped, targetShape)
	if err != nil {
		return nil, 0, err
	}

	result := make(map[string]interface{}, len(fields))

	for _, field := range fields {
		sourceValue, sourceHas := source[field]
		mappedValue, mappedHas := mapped[field]

		switch policy {
		case enrichment.PolicyEnhance:
			// Never overwrite a populated source field.
			if sourceHas && Present(sourceValue) {
				result[field] = sourceValue
			} else if mappedHas && Present(mappedValue) {
				result[field] = mappedValue
			} else if sourceHas {
				result[field] = sourceValue
			}

		case enrichment.PolicyMerge:
			// Provider wins wherever it supplies a value.
			if mappedHas && Present(mappedValue) {
				result[field] = mappedValue
			} else if sourceHas {
				result[field] = sourceValue
			}

		case enrichment.PolicyReplace:
			// Source is ignored field-by-field; it only feeds the diff count.
			if mappedHas {
				result[field] = mappedValue
			}
		}
	}

	return result, diffCount(source, result), nil
}

// fieldSet resolves the fields Apply iterates over.
func (e *Engine) fieldSet(source, mapped map[string]interface{}, targetShape interface{}) ([]string, error) {
	if targetShape == nil {
		return unionKeys(source, mapped), nil
	}

	declared, err := shapeFields(targetShape)
	if err != nil {
		return nil, err
	}

	declaredSet := make(map[string]bool, len(declared))
	for _, f := range declared {
		declaredSet[f] = true
	}

	for key := range mapped {
		if !declaredSet[key] {
			return nil, errors.MappingError(
				fmt.Sprintf("target shape %T does not declare field %q", targetShape, key), nil)
		}
	}

	return declared, nil
}

// shapeFields enumerates the JSON field names of a struct shape via reflection.
func shapeFields(shape interface{}) ([]string, error) {
	t := reflect.TypeOf(shape)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.ValidationError(
			fmt.Sprintf("target shape must be a struct, got %T", shape))
	}

	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields = append(fields, name)
	}
	return fields, nil
}

// Present reports whether a value counts as "provided" under the merge
// rules. Numeric and boolean zero values are present; nil, empty strings
// and empty containers are not.
func Present(value interface{}) bool {
	if value == nil {
		return false
	}

	switch v := value.(type) {
	case string:
		return v != ""
	case map[string]interface{}:
		return len(v) > 0
	case []interface{}:
		return len(v) > 0
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return Present(rv.Elem().Interface())
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	}

	return true
}

// Normalize converts a struct (or pointer to struct) into a document using
// pointer-field presence: nil pointer fields are omitted, everything else is
// included under its JSON field name. Maps pass through untouched.
func Normalize(value interface{}) (map[string]interface{}, error) {
	if value == nil {
		return map[string]interface{}{}, nil
	}

	if doc, ok := value.(map[string]interface{}); ok {
		return doc, nil
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return map[string]interface{}{}, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errors.ValidationError(
			fmt.Sprintf("cannot normalize %T into a document", value))
	}

	t := rv.Type()
	doc := make(map[string]interface{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}

		fv := rv.Field(i)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		doc[name] = fv.Interface()
	}
	return doc, nil
}

// diffCount counts result fields whose value differs from the source, or
// that the source did not populate at all.
func diffCount(source, result map[string]interface{}) int {
	count := 0
	for field, value := range result {
		sourceValue, sourceHas := source[field]
		if !sourceHas {
			if Present(value) {
				count++
			}
			continue
		}
		if !reflect.DeepEqual(sourceValue, value) {
			count++
		}
	}
	return count
}

// unionKeys returns the sorted union of both documents' keys.
func unionKeys(a, b map[string]interface{}) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
