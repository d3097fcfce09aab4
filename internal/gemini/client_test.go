package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/daybook/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		APIKey:          "test-key",
		BaseURL:         srv.URL + "/v1beta/",
		Model:           "gemini-test",
		MaxOutputTokens: 256,
		Temperature:     0.5,
	})
}

func TestGenerate_Success(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"headline\":\"ok\"}"}]}}]}`))
	})

	text, err := c.Generate(context.Background(), "summarize my day")
	require.NoError(t, err)
	require.Equal(t, `{"headline":"ok"}`, text)

	require.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	require.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	require.Equal(t, "summarize my day", gotBody.Contents[0].Parts[0].Text)
	require.Equal(t, 256, gotBody.GenerationConfig.MaxOutputTokens)
	require.Equal(t, 0.5, gotBody.GenerationConfig.Temperature)
}

func TestGenerate_EmptyTextIsValid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":""}]}}]}`))
	})
	text, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "", text)
}

func TestGenerate_NonOKStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			})

			_, err := c.Generate(context.Background(), "p")
			require.Error(t, err)
			require.True(t, errors.Is(err, errors.ErrAPI))
			require.Equal(t, tt.status, errors.UpstreamStatus(err))
			require.Equal(t, tt.rateLimited, errors.IsRateLimited(err))

			var dErr *errors.DaybookError
			require.ErrorAs(t, err, &dErr)
			require.Equal(t, `{"error":{"message":"nope"}}`, dErr.Details["body"])
		})
	}
}

func TestGenerate_MalformedBodies(t *testing.T) {
	bodies := map[string]string{
		"not json":      `<html>oops</html>`,
		"no candidates": `{"candidates":[]}`,
		"no parts":      `{"candidates":[{"content":{"parts":[]}}]}`,
		"no text":       `{"candidates":[{"content":{"parts":[{"inlineData":{}}]}}]}`,
		"blocked":       `{"promptFeedback":{"blockReason":"SAFETY"}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.Generate(context.Background(), "p")
			require.True(t, errors.Is(err, errors.ErrParse), "got %v", err)
		})
	}
}

func TestGenerate_NoCredential(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), "p")
	require.True(t, errors.Is(err, errors.ErrNoCredential))
	require.False(t, called)
}

func TestGenerate_TimeoutRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "secret-key-123", BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.Generate(context.Background(), "p")
	require.Error(t, err)
	require.False(t, strings.Contains(err.Error(), "secret-key-123"), "error leaks key: %v", err)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Options{APIKey: "k"})
	require.Equal(t, DefaultModel, c.Model())
	require.Equal(t, DefaultBaseURL, c.baseURL)
	require.Equal(t, DefaultTimeout, c.client.Timeout)
}
