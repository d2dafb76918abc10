// Package remote exposes a session over HTTP so that a phone or a browser can
// act as the controller. Input arrives on a websocket, dialogs and save slots
// are driven through plain requests.
package remote

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"

	"github.com/sema/inputbridge/pkg/savestate"
	"github.com/sema/inputbridge/pkg/session"
)

// Caller runs fn on the goroutine that owns the session and waits for it.
// loop.Loop implements it.
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

const (
	writeWait     = 5 * time.Second
	maxMessage    = 4096
	shutdownGrace = 2 * time.Second
)

// Server serves one session
type Server struct {
	caller   Caller
	session  *session.Session
	upgrader websocket.Upgrader
	engine   *gin.Engine
	log      log.Logger
}

// New creates a Server driving s. Every access to s goes through caller.
func New(caller Caller, s *session.Session) *Server {
	srv := &Server{
		caller:  caller,
		session: s,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With("component", "remote"),
	}
	srv.engine = srv.routes()
	return srv
}

// Handler returns the HTTP handler of the server
func (srv *Server) Handler() http.Handler {
	return srv.engine
}

// ListenAndServe serves on addr until ctx is cancelled
func (srv *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{Addr: addr, Handler: srv.engine}

	errc := make(chan error, 1)
	go func() {
		srv.log.Infof("listening on %s", addr)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrapf(err, "serving %s", addr)
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdown); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	return nil
}

func (srv *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/input", srv.input)
	r.GET("/state", srv.state)
	r.GET("/slots", srv.slots)

	r.POST("/pause", srv.action(func(s *session.Session) bool { return s.TogglePause() }))
	r.POST("/quickmenu/open", srv.action((*session.Session).OpenQuickMenu))
	r.POST("/quickmenu/close", srv.action((*session.Session).CloseQuickMenu))
	r.POST("/savedialog/open", srv.action((*session.Session).OpenSaveDialog))
	r.POST("/savedialog/close", srv.action((*session.Session).CloseSaveDialog))
	r.POST("/exit/close", srv.action((*session.Session).CloseExitDialog))
	r.POST("/exit/confirm", srv.action(func(s *session.Session) bool {
		s.ConfirmExit()
		return true
	}))
	r.POST("/overlay/:enabled", srv.overlay)

	r.POST("/save/:slot", srv.slot((*session.Session).SaveToSlot))
	r.POST("/load/:slot", srv.slot((*session.Session).LoadFromSlot))
	return r
}

// call runs fn against the session and maps loop failures to a status code
func (srv *Server) call(ctx *gin.Context, fn func(s *session.Session)) bool {
	err := srv.caller.Call(ctx.Request.Context(), func() {
		fn(srv.session)
	})
	if err != nil {
		srv.log.Warnf("%s %s: %v", ctx.Request.Method, ctx.Request.URL.Path, err)
		srv.reply(ctx, http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
		return false
	}
	return true
}

func (srv *Server) reply(ctx *gin.Context, code int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx.Data(code, "application/json; charset=utf-8", data)
}

func (srv *Server) state(ctx *gin.Context) {
	var st session.Status
	if srv.call(ctx, func(s *session.Session) { st = s.Status() }) {
		srv.reply(ctx, http.StatusOK, st)
	}
}

func (srv *Server) slots(ctx *gin.Context) {
	var slots []savestate.Slot
	if srv.call(ctx, func(s *session.Session) { slots = s.Slots() }) {
		srv.reply(ctx, http.StatusOK, slots)
	}
}

// action wraps a session operation that reports whether it changed anything
func (srv *Server) action(fn func(s *session.Session) bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var changed bool
		var closed bool
		ok := srv.call(ctx, func(s *session.Session) {
			if closed = s.Closed(); closed {
				return
			}
			changed = fn(s)
		})
		if !ok {
			return
		}
		if closed {
			srv.reply(ctx, http.StatusGone, gin.H{"ok": false, "error": session.ErrClosed.Error()})
			return
		}
		srv.reply(ctx, http.StatusOK, gin.H{"ok": true, "changed": changed})
	}
}

func (srv *Server) overlay(ctx *gin.Context) {
	enabled, err := strconv.ParseBool(ctx.Param("enabled"))
	if err != nil {
		srv.reply(ctx, http.StatusBadRequest, gin.H{"ok": false, "error": "overlay state must be true or false"})
		return
	}
	if srv.call(ctx, func(s *session.Session) { s.SetOverlayEnabled(enabled) }) {
		srv.reply(ctx, http.StatusOK, gin.H{"ok": true, "overlay": enabled})
	}
}

// slot wraps SaveToSlot and LoadFromSlot
func (srv *Server) slot(fn func(s *session.Session, slot int) (int, error)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requested, err := strconv.Atoi(ctx.Param("slot"))
		if err != nil {
			srv.reply(ctx, http.StatusBadRequest, gin.H{"ok": false, "error": "slot must be a number"})
			return
		}

		var used int
		var opErr error
		if !srv.call(ctx, func(s *session.Session) { used, opErr = fn(s, requested) }) {
			return
		}

		switch {
		case opErr == session.ErrClosed:
			srv.reply(ctx, http.StatusGone, gin.H{"ok": false, "error": opErr.Error()})
		case opErr != nil:
			srv.reply(ctx, http.StatusConflict, gin.H{"ok": false, "slot": used, "error": opErr.Error()})
		default:
			srv.reply(ctx, http.StatusOK, gin.H{"ok": true, "slot": used})
		}
	}
}

// input upgrades to a websocket and applies every message it receives until
// the peer goes away. Each message is answered with a Reply.
func (srv *Server) input(ctx *gin.Context) {
	if !ctx.IsWebsocket() {
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}
	conn, err := srv.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		srv.log.Warnf("upgrading input socket: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessage)

	peer := conn.RemoteAddr().String()
	srv.log.Infof("controller %s connected", peer)
	defer srv.log.Infof("controller %s disconnected", peer)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				srv.log.Warnf("controller %s: %v", peer, err)
			}
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}

		reply := srv.handleMessage(ctx.Request.Context(), data)
		out, err := json.Marshal(reply)
		if err != nil {
			srv.log.Errorf("encoding reply: %v", err)
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			srv.log.Debugf("controller %s: %v", peer, err)
			return
		}
	}
}

func (srv *Server) handleMessage(ctx context.Context, data []byte) Reply {
	in, err := decode(data)
	if err != nil {
		return Reply{Error: err.Error()}
	}

	var handled bool
	var applyErr error
	err = srv.caller.Call(ctx, func() {
		handled, applyErr = apply(srv.session, in)
	})
	if err != nil {
		// the task may still run later, so nothing it writes can be read
		return Reply{Error: err.Error()}
	}
	if applyErr != nil {
		return Reply{Handled: handled, Error: applyErr.Error()}
	}
	return Reply{OK: true, Handled: handled}
}
