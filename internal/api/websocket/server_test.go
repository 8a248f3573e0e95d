package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/dubs/internal/runner"
)

func startFeed(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	ts := httptest.NewServer(NewFeed(hub))
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return hub, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var e Event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestReporterBroadcastsLifecycle(t *testing.T) {
	hub, conn := startFeed(t)
	r := NewReporter(hub)

	r.OnRunStart(runner.Spec{DryRun: true})
	r.OnStage(runner.StageGames, 0, len(runner.Stages))
	r.OnProgress("Cleaned 2 of 3 games", 2, 3)
	r.OnRunComplete(&runner.Result{RunID: "abc", CombinedDays: 7})
	r.OnRunError(errors.New("boom"))

	started := readEvent(t, conn)
	assert.Equal(t, EventRunStarted, started.Type)
	assert.Equal(t, "dry run", started.Message)
	assert.False(t, started.Timestamp.IsZero())

	stage := readEvent(t, conn)
	assert.Equal(t, EventStage, stage.Type)
	assert.Equal(t, runner.StageGames, stage.Stage)
	assert.Equal(t, 1, stage.Current)
	assert.Equal(t, len(runner.Stages), stage.Total)

	progress := readEvent(t, conn)
	assert.Equal(t, EventProgress, progress.Type)
	assert.Equal(t, 2, progress.Current)

	done := readEvent(t, conn)
	assert.Equal(t, EventRunComplete, done.Type)
	require.NotNil(t, done.Result)
	assert.Equal(t, "abc", done.Result.RunID)
	assert.Equal(t, 7, done.Result.CombinedDays)

	failed := readEvent(t, conn)
	assert.Equal(t, EventRunError, failed.Type)
	assert.Equal(t, "boom", failed.Error)
}

func TestHubDropsClosedClients(t *testing.T) {
	hub, conn := startFeed(t)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
