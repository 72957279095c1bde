package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewFieldValidationError("course_id", "course not found")
	var verr *ValidationError
	if assert.True(t, errors.As(errors.Wrap(err, "enrolling"), &verr)) {
		assert.Equal(t, "course not found", verr.Error())
		assert.Equal(t, map[string]string{"course_id": "course not found"}, verr.FieldMap())
	}

	bare := NewValidationError(nil).(*ValidationError)
	assert.Equal(t, "invalid input", bare.Error())
	assert.Nil(t, bare.FieldMap())
}

func TestIsShutdown(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "shutdown", err: NewShutdownError("integrity check failed"), want: true},
		{name: "wrapped", err: errors.Wrap(NewShutdownError("integrity check failed"), "completing lesson"), want: true},
		{name: "other", err: errors.New("boom")},
		{name: "nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsShutdown(tt.err))
		})
	}
}
