package main

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-code-research/internal/envelope"
	"github.com/sammcj/mcp-code-research/internal/search"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	for value, want := range map[string]logrus.Level{
		"":        logrus.WarnLevel,
		"debug":   logrus.DebugLevel,
		" INFO ":  logrus.InfoLevel,
		"error":   logrus.ErrorLevel,
		"verbose": logrus.WarnLevel,
	} {
		t.Setenv("LOG_LEVEL", value)
		assert.Equal(t, want, parseLogLevel(), value)
	}
}

func TestDescribeErrorResult(t *testing.T) {
	result := envelope.Failure(&search.ValidationError{Field: "query", Message: "required"})
	message, category := describeErrorResult(result)
	assert.Contains(t, message, "required")
	assert.Equal(t, envelope.CategoryValidation, category)

	message, category = describeErrorResult(mcp.NewToolResultError("gh: Not Found (HTTP 404)"))
	assert.Equal(t, "gh: Not Found (HTTP 404)", message)
	assert.Equal(t, "not_found", category)

	message, _ = describeErrorResult(envelope.Failure(errors.New("boom")))
	assert.Equal(t, "boom", message)
}

func TestIsValidOrigin(t *testing.T) {
	assert.True(t, isValidOrigin("http://localhost:3000"))
	assert.True(t, isValidOrigin("https://127.0.0.1"))
	assert.False(t, isValidOrigin("https://evil.example.com"))
}

func TestSessionIDsAreUnique(t *testing.T) {
	m := &TimeoutSessionManager{logger: logrus.New()}
	assert.NotEqual(t, m.Generate(), m.Generate())

	terminated, err := m.Validate("")
	assert.Error(t, err)
	assert.False(t, terminated)
}

func TestRequireBearerToken(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := requireBearerToken("s3cret", logger, next)

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{name: "no token", want: http.StatusUnauthorized},
		{name: "wrong token", header: map[string]string{"Authorization": "Bearer nope"}, want: http.StatusUnauthorized},
		{name: "wrong scheme", header: map[string]string{"Authorization": "Basic s3cret"}, want: http.StatusUnauthorized},
		{name: "valid token", header: map[string]string{"Authorization": "Bearer s3cret"}, want: http.StatusNoContent},
		{
			name:   "foreign origin",
			header: map[string]string{"Authorization": "Bearer s3cret", "Origin": "https://evil.example"},
			want:   http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/http", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireBearerToken_OpenWithoutToken(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	handler := requireBearerToken("", logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/http", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
