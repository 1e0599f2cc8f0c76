package rerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeRPC, SeverityError, cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), string(CodeRPC))
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeSync, SeverityWarning, "not synced")
	b := New(CodeSync, SeverityError, "different message, same code")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, ErrRPC))
}

func TestSentinelsMatchViaErrorsIs(t *testing.T) {
	err := Wrap(CodeSync, SeverityWarning, errors.New("not synced"))
	assert.True(t, errors.Is(err, ErrSync))
	assert.False(t, errors.Is(err, ErrMetrics))
}

func TestConfigHelper(t *testing.T) {
	err := Config("duplicate group: %s", "example.com")
	assert.Equal(t, CodeConfig, err.Code)
	assert.Contains(t, err.Error(), "example.com")
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "fatal", SeverityFatal.String())
}
