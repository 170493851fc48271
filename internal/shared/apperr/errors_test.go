package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"validation", New(KindValidation, "title is required"), KindValidation},
		{"auth", New(KindAuth, "token expired"), KindAuth},
		{"wrapped in fmt", fmt.Errorf("list tasks: %w", New(KindUpstream, "backend timeout")), KindUpstream},
		{"plain error", errors.New("boom"), KindInternal},
		{"nil inner", Wrap(KindNotFound, "task not found", nil), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindAuth, http.StatusUnauthorized},
		{KindLocked, http.StatusLocked},
		{KindConflict, http.StatusConflict},
		{KindNotFound, http.StatusNotFound},
		{KindUpstream, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(New(tt.kind, "x")))
		})
	}

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unclassified")))
}

// TestMessageOf_NeverLeaksInternals 未分类错误不向客户端透出细节
func TestMessageOf_NeverLeaksInternals(t *testing.T) {
	assert.Equal(t, "internal server error", MessageOf(errors.New("pq: connection refused")))
	assert.Equal(t, "task not found", MessageOf(New(KindNotFound, "task not found")))
}

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := Wrap(KindUpstream, "sheets backend unreachable", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "upstream")
	assert.Contains(t, err.Error(), "i/o timeout")
}
