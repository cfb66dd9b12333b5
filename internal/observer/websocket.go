package observer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"virtual-mentor/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client frames.
const (
	TypeSelect = "select"
	TypeView   = "view"
	TypeError  = "error"
)

type clientMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type serverMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
	View   *View  `json:"view,omitempty"`
	Error  string `json:"error,omitempty"`

	// gen is the watch generation that produced the frame.
	gen uint64
}

// WSHandler streams Views over a websocket. The client picks the observed user
// with {"type":"select","userId":"..."}; the initial user comes from the userId
// path or query parameter. Selecting another user tears down the previous watch
// before the next one starts.
type WSHandler struct {
	Watcher *Watcher
	// CanWatch reports whether the authenticated caller may observe userID.
	// Nil allows everything.
	CanWatch func(ctx context.Context, userID string) bool
}

func (h WSHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}
	// Request context ends when the handler returns; the session outlives it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	s := &wsSession{
		h:       h,
		conn:    conn,
		log:     log,
		send:    make(chan serverMessage, sendBuffer),
		selects: make(chan string),
	}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.readPump(ctx)
	}()

	initial := c.Param("userId")
	if initial == "" {
		initial = c.Query("userId")
	}
	s.run(ctx, strings.TrimSpace(initial), readerDone)
	close(s.send)
	<-writerDone
	_ = conn.Close()
	<-readerDone
}

type wsSession struct {
	h       WSHandler
	conn    *websocket.Conn
	log     *slog.Logger
	send    chan serverMessage
	selects chan string

	// gen identifies the current watch. Frames from older generations may
	// still sit in send after a switch; the writer drops them.
	gen atomic.Uint64
}

// run owns the active watch. At most one Watch goroutine is alive at a time.
func (s *wsSession) run(ctx context.Context, initial string, readerDone <-chan struct{}) {
	var (
		stop func()
		done <-chan struct{}
	)
	halt := func() {
		if stop != nil {
			stop()
			<-done
			stop, done = nil, nil
		}
	}
	defer halt()

	start := func(userID string) {
		halt()
		gen := s.gen.Add(1)
		if userID != "" && s.h.CanWatch != nil && !s.h.CanWatch(ctx, userID) {
			s.enqueue(ctx, serverMessage{Type: TypeError, UserID: userID, Error: "forbidden", gen: gen})
			return
		}
		wctx, wcancel := context.WithCancel(ctx)
		finished := make(chan struct{})
		stop, done = wcancel, finished
		go func() {
			defer close(finished)
			emit := func(v View) {
				s.enqueue(wctx, serverMessage{Type: TypeView, UserID: userID, View: &v, gen: gen})
			}
			if err := s.h.Watcher.Watch(wctx, userID, emit); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("watch ended", "user_id", userID, "err", err)
			}
		}()
	}

	if initial != "" {
		start(initial)
	}
	for {
		select {
		case <-readerDone:
			return
		case <-ctx.Done():
			return
		case uid := <-s.selects:
			start(uid)
		}
	}
}

// enqueue blocks until the writer accepts m or ctx ends. Frames already
// buffered when the watch is replaced are discarded by the writer.
func (s *wsSession) enqueue(ctx context.Context, m serverMessage) {
	select {
	case s.send <- m:
	case <-ctx.Done():
	}
}

func (s *wsSession) readPump(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read ended", "err", err)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != TypeSelect {
			s.log.Debug("ignoring client frame", "raw", string(data))
			continue
		}
		select {
		case s.selects <- strings.TrimSpace(msg.UserID):
		case <-ctx.Done():
			return
		}
	}
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case m, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if m.gen != s.gen.Load() {
				continue
			}
			if err := s.conn.WriteJSON(m); err != nil {
				s.drain()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.drain()
				return
			}
		}
	}
}

// drain keeps consuming after a write failure so enqueue never blocks forever.
func (s *wsSession) drain() {
	_ = s.conn.Close()
	for range s.send {
	}
}
