package inspector

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/reactor/pkg/timeline"
)

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) timeline.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev timeline.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestStream_LiveEvents(t *testing.T) {
	srv, rec := newTestServer(t, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dial(t, ts, "")
	require.Eventually(t, func() bool { return rec.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return srv.StreamClients() == 1 }, 5*time.Second, 10*time.Millisecond)

	recordFlush(rec, 1)

	for _, want := range []timeline.Kind{timeline.KindFlushStarted, timeline.KindWatcherRan, timeline.KindFlushFinished} {
		assert.Equal(t, want, readEvent(t, conn).Kind)
	}
}

func TestStream_Backlog(t *testing.T) {
	srv, rec := newTestServer(t, nil)
	recordFlush(rec, 1)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dial(t, ts, "?backlog=true")

	var seqs []uint64
	for range 3 {
		seqs = append(seqs, readEvent(t, conn).Seq)
	}
	assert.Equal(t, []uint64{1, 2, 3}, seqs)

	require.Eventually(t, func() bool { return rec.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)
	recordFlush(rec, 2)
	assert.Equal(t, uint64(4), readEvent(t, conn).Seq)
}

func TestStream_DisconnectUnsubscribes(t *testing.T) {
	srv, rec := newTestServer(t, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dial(t, ts, "")
	require.Eventually(t, func() bool { return rec.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return rec.Subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, srv.StreamClients())
}

func TestStream_CloseSendsCloseFrame(t *testing.T) {
	srv, rec := newTestServer(t, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dial(t, ts, "")
	require.Eventually(t, func() bool { return srv.StreamClients() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rec.Subscribers())

	srv.stream.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
