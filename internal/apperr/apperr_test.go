package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{NotFound("person %s", "x"), http.StatusNotFound},
		{Unauthorized("no"), http.StatusUnauthorized},
		{Conflict("dup"), http.StatusConflict},
		{Unavailable("openai", errors.New("down")), http.StatusServiceUnavailable},
		{Internal("db", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("foreign"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestWrapPreservesKind(t *testing.T) {
	err := Wrap(NotFound("person abc"), "merge")
	assert.True(t, Is(err, KindNotFound))
	assert.Equal(t, "merge: person abc", err.Error())

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, KindNotFound, KindOf(wrapped))

	assert.Nil(t, Wrap(nil, "noop"))
	assert.Equal(t, KindInternal, KindOf(Wrap(errors.New("x"), "ctx")))
}

func TestPublicMessageHidesCause(t *testing.T) {
	err := Internal("failed to list persons", errors.New("sql: connection refused"))
	assert.Equal(t, "failed to list persons", PublicMessage(err))
	assert.Equal(t, "internal error", PublicMessage(errors.New("raw")))
}
