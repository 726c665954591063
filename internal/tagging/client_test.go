package tagging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*Config)) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL, "vision")
	cfg.RequestsPerMinute = 0
	cfg.APIKey = "k"
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg, nil), srv
}

func reply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

func TestClient_Tag(t *testing.T) {
	var got chatRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, `["Sunset", "sunset", "Warm Tones"]`)
	}, nil)

	tags, err := client.Tag(context.Background(), []byte{1, 2, 3}, "image/png", "de")
	require.NoError(t, err)
	assert.Equal(t, []string{"sunset", "warm tones"}, tags)

	assert.Equal(t, "vision", got.Model)
	require.Len(t, got.Messages, 1)
	parts := got.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "Moodboard", "german prompt selected")
	assert.Equal(t, "data:image/png;base64,AQID", parts[1].ImageURL.URL)
}

func TestClient_VideoIsNotSent(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, nil)

	tags, err := client.Tag(context.Background(), []byte{0}, "video/mp4", "en")
	assert.NoError(t, err)
	assert.Empty(t, tags)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestClient_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	}, nil)

	_, err := client.Tag(context.Background(), []byte{0}, "image/jpeg", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *Config) {
		cfg.BreakerFailures = 3
		cfg.BreakerOpen = time.Minute
	})

	for i := 0; i < 3; i++ {
		_, err := client.Tag(context.Background(), []byte{0}, "image/png", "en")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, "open", client.State())

	_, err := client.Tag(context.Background(), []byte{0}, "image/png", "en")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "open breaker short-circuits")
}

func TestClient_BreakerRecoversAfterOpenTimeout(t *testing.T) {
	var healthy atomic.Bool
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		reply(w, `["fern"]`)
	}, func(cfg *Config) {
		cfg.BreakerFailures = 1
		cfg.BreakerOpen = 50 * time.Millisecond
	})

	_, err := client.Tag(context.Background(), []byte{0}, "image/png", "en")
	require.Error(t, err)
	require.Equal(t, "open", client.State())

	healthy.Store(true)
	require.Eventually(t, func() bool {
		tags, err := client.Tag(context.Background(), []byte{0}, "image/png", "en")
		return err == nil && len(tags) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "closed", client.State())
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, "a, b")
	}, func(cfg *Config) {
		cfg.RequestsPerMinute = 1
	})

	_, err := client.Tag(context.Background(), []byte{0}, "image/png", "en")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Tag(ctx, []byte{0}, "image/png", "en")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "waiting for tagging slot"))
}

func TestNop(t *testing.T) {
	tags, err := Nop{}.Tag(context.Background(), nil, "image/png", "en")
	assert.NoError(t, err)
	assert.Nil(t, tags)
}
