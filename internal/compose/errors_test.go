package compose

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "code only",
			err:  ErrNotReady,
			want: "NOT_READY",
		},
		{
			name: "capability",
			err:  &Error{Code: CodeUnsupportedCapability, Message: "not provided", Capability: "extFn"},
			want: "UNSUPPORTED_CAPABILITY: not provided (capability=extFn)",
		},
		{
			name: "module and cause",
			err:  &Error{Code: CodeInitFailed, Message: "module init failed", Module: "db", Err: errors.New("boom")},
			want: "INIT_FAILED: module init failed (module=db): boom",
		},
		{
			name: "module and capability",
			err:  &Error{Code: CodeDuplicateCapability, Message: "dup", Module: "b", Capability: "x"},
			want: "DUPLICATE_CAPABILITY: dup (module=b, capability=x)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorIsMatchesSentinelByCode(t *testing.T) {
	err := &Error{Code: CodeMissingConfigField, Message: "missing ctx.foo", Fields: []string{"ctx.foo"}}

	assert.True(t, errors.Is(err, ErrMissingConfigField))
	assert.False(t, errors.Is(err, ErrInvalidConfigField))

	wrapped := fmt.Errorf("startup: %w", err)
	assert.True(t, errors.Is(wrapped, ErrMissingConfigField))
	assert.True(t, IsMissingConfigField(wrapped))
	assert.Equal(t, CodeMissingConfigField, CodeOf(wrapped))
}

func TestErrorIsDoesNotMatchDetailedTarget(t *testing.T) {
	a := &Error{Code: CodeNotReady, Message: "a"}
	b := &Error{Code: CodeNotReady, Message: "b"}
	assert.False(t, errors.Is(a, b))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &Error{Code: CodeOperationFailed, Err: cause}
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrOperationFailed))
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.False(t, IsNotReady(errors.New("plain")))
	assert.False(t, IsUnsupportedCapability(nil))
}
