package observability

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverPanic(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(InfoLevel, buf)

	func() {
		defer RecoverPanic(logger, "purge")
		panic("kaboom")
	}()

	assert.Contains(t, buf.String(), "PANIC recovered")
	assert.Contains(t, buf.String(), "kaboom")
	assert.Contains(t, buf.String(), `"context":"purge"`)
}

func TestPanicError(t *testing.T) {
	assert.NoError(t, PanicError(nil))
	assert.EqualError(t, PanicError("x"), "panic: x")

	cause := errors.New("inner")
	assert.ErrorIs(t, PanicError(cause), cause)
}
