package serrors_test

import (
	"errors"
	"testing"

	"cookiescan/pkg/serrors"

	"github.com/stretchr/testify/require"
)

type customError struct{ msg string }

func (e customError) Error() string { return e.msg }

func TestDefaultKindsDistinct(t *testing.T) {
	kinds := []serrors.Kind{
		serrors.ErrNotFound,
		serrors.ErrBadRequest,
		serrors.ErrConflict,
		serrors.ErrInternal,
		serrors.ErrTimeout,
		serrors.ErrUnavailable,
		serrors.ErrRateLimited,
	}

	seen := map[serrors.Kind]bool{}
	for i, k := range kinds {
		require.NotNil(t, k, "kind at index %d is nil", i)
		require.False(t, seen[k], "kind at index %d is duplicate: %v", i, k)
		seen[k] = true
	}
}

func TestErrorFormatting(t *testing.T) {
	base := errors.New("connection refused")

	withMsg := serrors.With(serrors.ErrBadRequest, "subdomain %q outside root domain", "shop.other.com")
	require.Equal(t, `subdomain "shop.other.com" outside root domain`, withMsg.Error())

	wrapped := serrors.Wrap(serrors.ErrUnavailable, base, "calling categorization upstream")
	require.Equal(t, "calling categorization upstream: connection refused", wrapped.Error())

	kindOnly := serrors.KindOnly(serrors.ErrNotFound)
	require.Equal(t, "NOT_FOUND", kindOnly.Error())
}

func TestIsMatchesKindAndWrapped(t *testing.T) {
	base := customError{"root cause"}
	err := serrors.Wrap(serrors.ErrNotFound, base, "loading scan")

	require.ErrorIs(t, err, serrors.ErrNotFound)
	require.ErrorIs(t, err, base)
	require.NotErrorIs(t, err, serrors.ErrBadRequest)
}

func TestIsTraversesWrappingChain(t *testing.T) {
	inner := serrors.KindOnly(serrors.ErrTimeout)
	outer := errors.Join(errors.New("attempt 3 of 3"), inner)

	require.ErrorIs(t, outer, serrors.ErrTimeout)
}

func TestAsMatchesKindAndWrapped(t *testing.T) {
	base := &customError{"root cause"}
	err := serrors.Wrap(serrors.ErrNotFound, base, "loading scan")

	var k serrors.Kind
	require.ErrorAs(t, err, &k)
	require.Equal(t, serrors.ErrNotFound, k)

	var ce *customError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, base, ce)
}

func TestAccessors(t *testing.T) {
	base := errors.New("boom")
	err := serrors.Wrap(serrors.ErrConflict, base, "scan already terminal")

	require.Equal(t, serrors.ErrConflict, err.Kind())
	require.Equal(t, "scan already terminal", err.Message())
	require.Equal(t, base, err.Cause())
}
