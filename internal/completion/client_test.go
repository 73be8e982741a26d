package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkkkikiki/portal/internal/config"
)

func testConfig(url string) config.CompletionConfig {
	return config.CompletionConfig{
		APIKey:      "sk-test",
		BaseURL:     url,
		Model:       "test-model",
		TimeoutMS:   2000,
		MaxAttempts: 3,
	}
}

var fastRetry = WithRetryConfig(RetryConfig{
	MaxAttempts:       3,
	BackoffBase:       time.Millisecond,
	BackoffMultiplier: 2,
	MaxBackoff:        5 * time.Millisecond,
})

func writeReply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": text}},
		},
	})
}

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "portal data", req.Messages[0].Content)
		assert.Equal(t, "今月の学びは？", req.Messages[1].Content)

		writeReply(w, "今月は防災講座があります。")
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), fastRetry)

	text, err := client.Complete(context.Background(), "portal data", "今月の学びは？")
	require.NoError(t, err)
	assert.Equal(t, "今月は防災講座があります。", text)
}

func TestComplete_RetriesTransient(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeReply(w, "ok")
	}))
	defer server.Close()

	text, err := NewClient(testConfig(server.URL), fastRetry).Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestComplete_FatalNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL), fastRetry).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestComplete_EmptyChoicesIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL), fastRetry).Complete(context.Background(), "s", "u")
	assert.True(t, IsFatal(err))
}

func TestComplete_Disabled(t *testing.T) {
	client := NewClient(config.CompletionConfig{})
	assert.False(t, client.Enabled())

	_, err := client.Complete(context.Background(), "s", "u")
	assert.True(t, errors.Is(err, ErrDisabled))
}

func TestComplete_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeReply(w, "ok")
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RatePerSecond = 0.001
	cfg.Burst = 1
	client := NewClient(cfg, fastRetry)

	_, err := client.Complete(context.Background(), "s", "u")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, IsTransient(err))
}

func TestClassifyHTTPError(t *testing.T) {
	assert.True(t, IsTransient(classifyHTTPError(http.StatusTooManyRequests, nil)))
	assert.True(t, IsTransient(classifyHTTPError(http.StatusBadGateway, nil)))
	assert.True(t, IsFatal(classifyHTTPError(http.StatusBadRequest, nil)))
	assert.True(t, IsFatal(classifyHTTPError(http.StatusForbidden, nil)))
}
