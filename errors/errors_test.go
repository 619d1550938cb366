package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrapFormat(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "Supervisor", "connect", "dial printer")
	require.Error(t, err)
	assert.Equal(t, "Supervisor.connect: dial printer failed: boom", err.Error())
	assert.True(t, errors.Is(err, base))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestClassificationOfWrappedErrors(t *testing.T) {
	transient := WrapTransient(ErrConnectionLost, "Supervisor", "read", "receive frame")
	invalid := WrapInvalid(ErrMalformedFrame, "Supervisor", "decode", "parse frame")
	fatal := WrapFatal(ErrMissingConfig, "Bridge", "New", "validate config")

	assert.True(t, IsTransient(transient))
	assert.False(t, IsInvalid(transient))

	assert.True(t, IsInvalid(invalid))
	assert.False(t, IsTransient(invalid))

	assert.True(t, IsFatal(fatal))
	assert.Equal(t, ErrorFatal, Classify(fatal))
}

func TestClassificationOfSentinels(t *testing.T) {
	assert.True(t, IsTransient(ErrPublishFailed))
	assert.True(t, IsTransient(fmt.Errorf("outer: %w", ErrConnectionTimeout)))
	assert.True(t, IsInvalid(ErrMalformedFrame))
	assert.True(t, IsFatal(ErrMissingConfig))

	// Unknown errors default to transient so callers may retry.
	assert.Equal(t, ErrorTransient, Classify(errors.New("mystery")))
}

func TestUnwrapPreservesChain(t *testing.T) {
	err := WrapTransient(ErrFetchOverBudget, "Fetcher", "Fetch", "stream body")

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Fetcher", ce.Component)
	assert.Equal(t, "Fetch", ce.Operation)
	assert.True(t, errors.Is(err, ErrFetchOverBudget))
}
