package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bvisness/landflow/app/core"
	"github.com/bvisness/landflow/app/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sio "github.com/zishang520/socket.io/v2/socket"
)

type funcNotifier func(ev Event) error

func (f funcNotifier) Notify(_ context.Context, ev Event) error {
	return f(ev)
}

func TestNewEvent(t *testing.T) {
	g := core.NewGraph()
	chart, err := g.Add(core.KindChart, "forecast chart")
	require.NoError(t, err)
	chart.Receive(core.NewResult([]byte(`{"forecast":[1]}`)), core.DisplayTrend, nil)

	data, err := json.Marshal(NewEvent(EventDirty, chart, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"dirty","node_id":1,"node":"forecast chart","kind":"output/chart","display":"trend"}`, string(data))
}

func TestMulti(t *testing.T) {
	var seen []string
	boom := errors.New("renderer gone")
	m := Multi{
		funcNotifier(func(ev Event) error { seen = append(seen, "a:"+ev.Node); return nil }),
		nil,
		funcNotifier(func(ev Event) error { seen = append(seen, "b:"+ev.Node); return boom }),
	}

	err := m.Notify(context.Background(), Event{Type: EventFailed, Node: "markov"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a:markov", "b:markov"}, seen)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	require.NoError(t, Log{}.Notify(ctx, Event{Type: EventCompleted, Node: "trend"}))
	assert.Empty(t, buf.String(), "completions log below warn")

	require.NoError(t, Log{}.Notify(ctx, Event{Type: EventFailed, Node: "trend", Kind: core.KindRegression, Message: "service error: boom"}))
	assert.Contains(t, buf.String(), "Node failed.")
	assert.Contains(t, buf.String(), "node=trend")
	assert.Contains(t, buf.String(), "boom")
}

func TestDialRejectsRelativeURL(t *testing.T) {
	_, err := Dial(context.Background(), "renderer:3000", "/", time.Second)
	assert.Error(t, err)
}

func TestDialUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	start := time.Now()
	_, err = Dial(context.Background(), "http://"+addr, "/", 200*time.Millisecond)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second, "a refused connection is not retried")
}

func TestConnectError(t *testing.T) {
	boom := errors.New("refused")
	assert.Same(t, boom, connectError([]any{boom}))
	assert.EqualError(t, connectError([]any{"xhr poll error"}), "xhr poll error")
	assert.Error(t, connectError(nil))
}

func TestSocketIONotify(t *testing.T) {
	server := sio.NewServer(nil, nil)
	received := make(chan map[string]any, 1)
	server.On("connection", func(clients ...any) {
		client := clients[0].(*sio.Socket)
		client.On(RendererEvent, func(args ...any) {
			if len(args) == 0 {
				return
			}
			if ev, ok := args[0].(map[string]any); ok {
				received <- ev
			}
		})
	})
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", server.ServeHandler(nil))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close(nil)
		srv.Close()
	})

	ctx := context.Background()
	renderer, err := Dial(ctx, srv.URL, "/", 5*time.Second)
	require.NoError(t, err)
	defer renderer.Close()

	require.NoError(t, renderer.Notify(ctx, Event{Type: EventFailed, NodeID: 3, Node: "projection", Kind: core.KindMarkov, Message: "service error: boom"}))

	select {
	case ev := <-received:
		assert.Equal(t, "failed", ev["type"])
		assert.Equal(t, 3.0, ev["node_id"])
		assert.Equal(t, "projection", ev["node"])
		assert.Equal(t, "process/markov", ev["kind"])
		assert.Equal(t, "service error: boom", ev["message"])
	case <-time.After(5 * time.Second):
		t.Fatal("renderer never received the event")
	}
}
