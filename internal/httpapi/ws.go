package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/call"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/call/dialog"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

// Application close codes for call rejection, shared with the browser client.
const (
	closeInvalidApplication websocket.StatusCode = 4000
	closeCallActive         websocket.StatusCode = 4409
)

// handleCallSocket is GET /api/ws/call?application_id=…: it upgrades the
// connection, claims the application's call slot, and hands the socket to the
// dialog engine. Whatever way the dialog ends, the call is closed out exactly
// once and CallFinished is published.
func (s *Server) handleCallSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}

	applicationID, err := domain.ParseApplicationID(r.URL.Query().Get("application_id"))
	if err != nil {
		conn.Close(closeInvalidApplication, "Invalid application_id")
		return
	}

	screeningCall, err := s.calls.StartCall(r.Context(), applicationID)
	if errors.Is(err, call.ErrCallActive) {
		conn.Close(closeCallActive, "Call already active for this application")
		return
	}
	if err != nil {
		slog.Error("call could not be started", "application_id", applicationID, "err", err)
		conn.Close(websocket.StatusInternalError, "call could not be started")
		return
	}

	started := time.Now()
	s.metrics.RecordCallStarted(r.Context())

	prompt := s.calls.PromptForApplication(applicationID)
	engine := dialog.NewEngine(newWSConn(r.Context(), conn), s.emma, prompt, s.transcriber, s.dialog)
	transcript, runErr := engine.Run(r.Context())

	// The request context dies with the socket; closing out the call must
	// still reach the repository and the event bus.
	endCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
	defer cancel()

	if err := s.calls.EndCall(endCtx, applicationID, screeningCall.ID, transcript); err != nil {
		slog.Error("call close-out failed",
			"application_id", applicationID, "call_id", screeningCall.ID, "err", err)
	}

	status := "completed"
	if runErr != nil {
		status = "disconnected"
		slog.Warn("dialog ended abnormally",
			"application_id", applicationID, "call_id", screeningCall.ID, "err", runErr)
	}
	s.metrics.RecordCallFinished(endCtx, status, time.Since(started).Seconds())

	if runErr != nil {
		conn.Close(websocket.StatusInternalError, "call aborted")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// wsConn adapts a [websocket.Conn] to the dialog engine's transport.
//
// The engine applies per-turn deadlines through the ReadText context and
// expects an expired deadline to leave the connection usable, but cancelling
// the context of [websocket.Conn.Read] tears the whole connection down. A
// single pump goroutine therefore owns the blocking reads for the lifetime
// of the socket, and ReadText races its own context against the pump's
// message channel.
type wsConn struct {
	conn *websocket.Conn
	msgs chan readResult
}

type readResult struct {
	text string
	err  error
}

var _ dialog.Conn = (*wsConn)(nil)

// newWSConn starts the read pump. ctx bounds the pump's lifetime; cancel it
// (or close the connection) to stop the goroutine.
func newWSConn(ctx context.Context, conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn: conn,
		msgs: make(chan readResult),
	}
	go c.pump(ctx)
	return c
}

func (c *wsConn) pump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		res := readResult{text: string(data), err: err}
		select {
		case c.msgs <- res:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *wsConn) ReadText(ctx context.Context) (string, error) {
	select {
	case res := <-c.msgs:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *wsConn) WriteText(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}
