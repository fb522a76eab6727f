package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(CodeUnavailable, "dial sqlite", errors.New("disk gone"))
	require.ErrorIs(t, err, ErrUnavailable)
	require.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("read key 5: %w", err)
	require.ErrorIs(t, wrapped, ErrUnavailable)
	require.Equal(t, CodeUnavailable, CodeOf(wrapped))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(CodeStoreRejected, "upsert key 1", errors.New("constraint failed"))
	require.Equal(t, "upsert key 1: constraint failed", err.Error())
	require.Equal(t, "not found", ErrNotFound.Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		ErrValidation:           http.StatusBadRequest,
		ErrNotFound:             http.StatusNotFound,
		ErrUnavailable:          http.StatusServiceUnavailable,
		ErrStoreRejected:        http.StatusInternalServerError,
		errors.New("something"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, HTTPStatus(err), "error %v", err)
	}
}

func TestCodeString(t *testing.T) {
	require.Equal(t, "unavailable", CodeUnavailable.String())
	require.Equal(t, "unknown", Code(99).String())
}
