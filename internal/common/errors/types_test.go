package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	t.Run("type and message", func(t *testing.T) {
		err := ValidationError("merge policy is required")
		assert.Equal(t, "validation: merge policy is required", err.Error())
	})

	t.Run("includes cause", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := ProviderError("fetch failed", cause)
		assert.Contains(t, err.Error(), "provider: fetch failed")
		assert.Contains(t, err.Error(), "cause=connection refused")
	})

	t.Run("includes code and context", func(t *testing.T) {
		err := MappingError("bad payload", nil).
			WithCode("MAP001").
			WithContext("field", "address")
		assert.Contains(t, err.Error(), "code=MAP001")
		assert.Contains(t, err.Error(), "field=address")
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := CacheError("redis unavailable", cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"matching type", ValidationError("bad"), ErrTypeValidation, true},
		{"non-matching type", ValidationError("bad"), ErrTypeProvider, false},
		{"plain error", fmt.Errorf("plain"), ErrTypeInternal, false},
		{"nil error", nil, ErrTypeValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeTimeout, GetType(TimeoutError("provider fetch")))
	assert.Equal(t, ErrTypeInternal, GetType(fmt.Errorf("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}
