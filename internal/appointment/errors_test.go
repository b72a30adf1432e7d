package appointment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindMatching(t *testing.T) {
	wrapped := fmt.Errorf("create booking: %w", ErrBookingOverlap)

	assert.ErrorIs(t, wrapped, ErrBookingOverlap)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrScheduleBusy, "specific sentinels match by identity")
	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrBookingNotFound, KindNotFound},
		{ErrInvalidRange, KindValidation},
		{validationError("bad"), KindValidation},
		{ErrDuplicateIdentityNumber, KindConflict},
		{ErrPractitionerInactive, KindInactive},
		{errors.New("connection refused"), ""},
		{nil, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), "%v", tc.err)
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "booking not found", ErrBookingNotFound.Error())
	assert.Equal(t, "conflict", ErrConflict.Error())

	e := &Error{Kind: KindConflict, Message: "save failed", Err: errors.New("boom")}
	assert.Equal(t, "save failed: boom", e.Error())
	assert.Equal(t, "boom", errors.Unwrap(e).Error())
}

func TestWrapLookup(t *testing.T) {
	assert.Same(t, ErrClientNotFound, wrapLookup("load client", ErrClientNotFound))

	infra := errors.New("timeout")
	got := wrapLookup("load client", infra)
	assert.ErrorIs(t, got, infra)
	assert.Equal(t, "load client: timeout", got.Error())
}
