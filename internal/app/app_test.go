package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kimai-deck/internal/adapter/kimai/kimaitest"
	"kimai-deck/internal/config"
	"kimai-deck/internal/deck"
	"kimai-deck/internal/domain"
)

func testConfig() config.Config {
	var cfg config.Config
	cfg.Kimai.URL = "http://kimai.local"
	cfg.Kimai.APIToken = "secret"
	cfg.Keys = []config.Key{
		{Name: "dev", Kind: config.KindToggle, ProjectID: "1", ActivityID: "3"},
		{Name: "ops", Kind: config.KindToggle, ProjectID: "2", ActivityID: "4"},
		{Name: "summary", Kind: config.KindDisplay},
		{Name: "halt", Kind: config.KindStop},
	}
	return cfg
}

func startApp(t *testing.T, fake *kimaitest.Fake) *App {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := build(log, testConfig(), fake, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	settle(t, a)
	return a
}

func settle(t *testing.T, a *App) {
	t.Helper()
	require.NoError(t, a.loop.Do(context.Background(), func() {}))
	require.Eventually(t, a.loop.Idle, 2*time.Second, time.Millisecond)
}

func face(t *testing.T, a *App, name string) deck.KeyFace {
	t.Helper()
	faces, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	for _, f := range faces {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no face for %q", name)
	return deck.KeyFace{}
}

func TestLookup(t *testing.T) {
	a := build(slog.New(slog.NewTextHandler(io.Discard, nil)), testConfig(), kimaitest.New(), nil, nil)

	assert.Equal(t, []string{"dev", "ops", "summary", "halt"}, a.Keys())
	for token, want := range map[string]string{"dev": "dev", " ops ": "ops", "3": "summary", "1": "dev"} {
		got, ok := a.Lookup(token)
		assert.True(t, ok, token)
		assert.Equal(t, want, got, token)
	}
	for _, token := range []string{"", "0", "5", "nope"} {
		_, ok := a.Lookup(token)
		assert.False(t, ok, token)
	}
}

func TestPressKeepsOneEntryRunning(t *testing.T) {
	fake := kimaitest.New()
	a := startApp(t, fake)
	ctx := context.Background()

	require.NoError(t, a.Press(ctx, "dev"))
	settle(t, a)
	require.NoError(t, a.Press(ctx, "ops"))
	settle(t, a)

	assert.Len(t, fake.Active(), 1)
	assert.Equal(t, "idle", face(t, a, "dev").Tone)
	assert.Equal(t, "running", face(t, a, "ops").Tone)
	assert.Equal(t, "running", face(t, a, "summary").Tone)
}

func TestStopKeyStopsWhateverRuns(t *testing.T) {
	fake := kimaitest.New()
	a := startApp(t, fake)
	ctx := context.Background()

	require.NoError(t, a.Press(ctx, "ops"))
	settle(t, a)
	require.NoError(t, a.Press(ctx, "halt"))
	settle(t, a)

	assert.Empty(t, fake.Active())
	assert.Equal(t, "idle", face(t, a, "ops").Tone)
	assert.Equal(t, "idle", face(t, a, "summary").Tone)
	f := face(t, a, "halt")
	assert.Equal(t, "Stopped", f.Center)
	assert.Equal(t, "running", f.Tone)
}

func TestPressUnknownKey(t *testing.T) {
	a := startApp(t, kimaitest.New())
	err := a.Press(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestHTTPHandler(t *testing.T) {
	fake := kimaitest.New(domain.TimeEntry{ID: 9, Begin: "2025-06-18T07:02:46", ProjectID: 2, ActivityID: 4})
	a := startApp(t, fake)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/keys/dev/press", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	settle(t, a)
	assert.Equal(t, []int64{10}, fake.Active())
	assert.Equal(t, []int64{9}, fake.StoppedIDs)

	resp, err = http.Post(srv.URL+"/keys/nope/press", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/keys")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status string          `json:"status"`
		Keys   []deck.KeyFace `json:"keys"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Keys, 4)
	assert.Equal(t, "dev", body.Keys[0].Name)
	assert.Equal(t, "running", body.Keys[0].Tone)
	assert.Equal(t, "idle", body.Keys[1].Tone)

	resp2, err := http.Get(srv.URL + "/keys/dev/press")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}
