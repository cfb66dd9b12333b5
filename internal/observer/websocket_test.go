package observer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, h WSHandler, query string) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", h.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(serverMessage) bool) serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var m serverMessage
		require.NoError(t, conn.ReadJSON(&m))
		if match(m) {
			return m
		}
	}
}

func TestWSHandler_StreamsAndSwitchesUsers(t *testing.T) {
	h := newHarness()
	h.createSession(t, "s1", time.Now().UTC())

	allowed := func(ctx context.Context, userID string) bool { return userID != "u9" }
	conn := dialWS(t, WSHandler{Watcher: h.w, CanWatch: allowed}, "?userId=u1")

	m := readUntil(t, conn, func(m serverMessage) bool {
		return m.Type == TypeView && m.View != nil && m.View.Conversation != nil
	})
	require.Equal(t, "u1", m.UserID)
	require.Equal(t, "s1", m.View.Conversation.ID)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: TypeSelect, UserID: "u9"}))
	m = readUntil(t, conn, func(m serverMessage) bool { return m.Type == TypeError })
	require.Equal(t, "forbidden", m.Error)
	require.Equal(t, "u9", m.UserID)
	require.Eventually(t, func() bool { return h.feed.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: TypeSelect, UserID: "u2"}))
	m = readUntil(t, conn, func(m serverMessage) bool {
		return m.Type == TypeView && m.UserID == "u2" && m.View != nil && !m.View.Loading
	})
	require.Nil(t, m.View.Conversation)
}

func TestWSHandler_ClientCloseTearsDownWatch(t *testing.T) {
	h := newHarness()
	h.createSession(t, "s1", time.Now().UTC())
	conn := dialWS(t, WSHandler{Watcher: h.w}, "")

	require.NoError(t, conn.WriteJSON(clientMessage{Type: TypeSelect, UserID: "u1"}))
	readUntil(t, conn, func(m serverMessage) bool {
		return m.Type == TypeView && m.View != nil && m.View.Conversation != nil
	})
	require.Equal(t, 2, h.feed.Subscribers())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.feed.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// serverConn returns the server side of a websocket pair and the client side.
func serverConn(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- c
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case c := <-accepted:
		t.Cleanup(func() { _ = c.Close() })
		return c, client
	case <-time.After(2 * time.Second):
		t.Fatal("server side never accepted")
		return nil, nil
	}
}

func TestWritePump_DropsFramesFromReplacedWatch(t *testing.T) {
	server, client := serverConn(t)
	s := &wsSession{conn: server, log: slog.Default(), send: make(chan serverMessage, sendBuffer)}

	s.gen.Store(1)
	for i := 0; i < sendBuffer-1; i++ {
		s.send <- serverMessage{Type: TypeView, UserID: "u1", View: &View{}, gen: 1}
	}
	// The switch happens while the u1 frames are still buffered.
	s.gen.Store(2)
	s.send <- serverMessage{Type: TypeView, UserID: "u2", View: &View{}, gen: 2}
	close(s.send)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump()
	}()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m serverMessage
	require.NoError(t, client.ReadJSON(&m))
	require.Equal(t, "u2", m.UserID)
	<-done
}

func TestWSHandler_NoFramesForPreviousUserAfterSwitch(t *testing.T) {
	h := newHarness()
	h.createSession(t, "s1", time.Now().UTC())
	conn := dialWS(t, WSHandler{Watcher: h.w}, "?userId=u1")

	readUntil(t, conn, func(m serverMessage) bool {
		return m.Type == TypeView && m.View != nil && m.View.Conversation != nil
	})

	// Produce a burst of u1 views while the client is not reading.
	for i := 0; i < 3*sendBuffer; i++ {
		h.say(t, "s1", fmt.Sprintf("line %d", i))
	}
	require.NoError(t, conn.WriteJSON(clientMessage{Type: TypeSelect, UserID: "u2"}))

	readUntil(t, conn, func(m serverMessage) bool { return m.UserID == "u2" })
	h.say(t, "s1", "after switch")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	for {
		var m serverMessage
		if err := conn.ReadJSON(&m); err != nil {
			break
		}
		require.Equal(t, "u2", m.UserID, "frame for a replaced watch delivered after the switch")
	}
}
