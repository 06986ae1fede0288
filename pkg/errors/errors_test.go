package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	inner := stderrors.New("context deadline exceeded")

	err := NewNavigationTimeout("Widget", "https://shop.example/widget", inner)
	assert.Contains(t, err.Error(), "[navigation_timeout]")
	assert.Contains(t, err.Error(), "Widget")
	assert.Contains(t, err.Error(), "https://shop.example/widget")
	assert.Contains(t, err.Error(), "context deadline exceeded")

	err = NewConfig("watchlist item 2: name is empty", nil)
	assert.Equal(t, "[config] watchlist item 2: name is empty", err.Error())
}

func TestUnwrap(t *testing.T) {
	inner := stderrors.New("boom")
	err := NewSelectorTimeout("Widget", "#price", inner)
	assert.ErrorIs(t, err, inner)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, NewConfig("bad", nil).IsFatal())
	assert.True(t, NewStorage("flush failed", nil).IsFatal())
	assert.False(t, NewNavigationTimeout("a", "u", nil).IsFatal())
	assert.False(t, NewSelectorTimeout("a", "#p", nil).IsFatal())
	assert.False(t, NewParse("a", "no price", nil).IsFatal())
	assert.False(t, NewPicker("a", "cancelled", nil).IsFatal())
	assert.False(t, NewTransport("a", "email", nil).IsFatal())
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeParse, TypeOf(NewParse("a", "m", nil)))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))

	// Wrapped taxonomy errors still classify.
	wrapped := fmt.Errorf("check failed: %w", NewSelectorTimeout("a", "#p", nil))
	assert.Equal(t, ErrorTypeSelectorTimeout, TypeOf(wrapped))
}
