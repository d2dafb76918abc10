package remote

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/sema/inputbridge/pkg/core"
	"github.com/sema/inputbridge/pkg/loop"
	"github.com/sema/inputbridge/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// direct serializes calls with a mutex instead of a loop goroutine
type direct struct {
	mu sync.Mutex
}

func (d *direct) Call(ctx context.Context, fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
	return nil
}

type stopped struct{}

func (stopped) Call(ctx context.Context, fn func()) error {
	return loop.ErrStopped
}

// late runs fn but reports that the caller gave up waiting for it
type late struct{}

func (late) Call(ctx context.Context, fn func()) error {
	fn()
	return context.Canceled
}

type fixture struct {
	t      *testing.T
	caller *direct
	clock  *loop.Manual
	rec    *core.Recorder
	s      *session.Session
	srv    *Server
}

func newFixture(t *testing.T) *fixture {
	root, err := ioutil.TempDir("", "remote")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(root) })

	f := &fixture{
		t:      t,
		caller: &direct{},
		clock:  loop.NewManual(),
		rec:    core.NewRecorder(),
	}
	f.rec.Now = f.clock.Now
	f.rec.GameName = "vf3"

	cfg := session.DefaultConfig()
	cfg.UserDataRoot = root
	cfg.InputTypes = []string{"fighting"}

	f.s, err = session.New(cfg, f.rec, f.clock)
	require.NoError(t, err)
	f.srv = New(f.caller, f.s)
	return f
}

func (f *fixture) do(method, path string) (int, map[string]interface{}) {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func (f *fixture) status() session.Status {
	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	require.Equal(f.t, http.StatusOK, w.Code)

	var st session.Status
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &st))
	return st
}

func (f *fixture) dial() *websocket.Conn {
	ts := httptest.NewServer(f.srv.Handler())
	f.t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/input"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) Reply {
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var r Reply
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

func TestDecode(t *testing.T) {
	in, err := decode([]byte(`{"type":"key","key":"start","action":"repeat"}`))
	require.NoError(t, err)
	require.Equal(t, core.KeyButtonStart, in.key.Code)
	require.Equal(t, core.KeyDown, in.key.Action)
	require.Equal(t, 1, in.key.Repeat)
	require.True(t, in.key.FromGamepad())

	in, err = decode([]byte(`{"type":"key","key":"a","action":"up","source":"keyboard"}`))
	require.NoError(t, err)
	require.False(t, in.key.FromGamepad())

	in, err = decode([]byte(`{"type":"touch","control":"coin","action":"down"}`))
	require.NoError(t, err)
	require.Equal(t, "coin", in.control)

	for _, bad := range []string{
		`{"type":"key","key":"turbo","action":"down"}`,
		`{"type":"key","key":"a","action":"hold"}`,
		`{"type":"key","key":"a","action":"down","source":"mouse"}`,
		`{"type":"touch","action":"down"}`,
		`{"type":"touch","control":"coin","action":"tap"}`,
		`{"type":"wiggle"}`,
		`not json`,
	} {
		_, err := decode([]byte(bad))
		require.Error(t, err, bad)
	}
}

func TestSocketChordOpensQuickMenu(t *testing.T) {
	f := newFixture(t)
	conn := f.dial()

	r := send(t, conn, `{"type":"key","key":"start","action":"down"}`)
	require.True(t, r.OK)
	require.True(t, r.Handled)
	r = send(t, conn, `{"type":"key","key":"select","action":"down"}`)
	require.True(t, r.OK)

	st := f.status()
	require.True(t, st.QuickMenu)
	require.True(t, st.Paused)
	require.Empty(t, f.rec.Keys())

	// back closes the dialog the UI would own
	r = send(t, conn, `{"type":"back"}`)
	require.True(t, r.OK)
	require.True(t, r.Handled)
	require.False(t, f.status().QuickMenu)
}

func TestSocketBackKeyDismissesDialog(t *testing.T) {
	f := newFixture(t)
	conn := f.dial()

	code, _ := f.do(http.MethodPost, "/quickmenu/open")
	require.Equal(t, http.StatusOK, code)

	send(t, conn, `{"type":"key","key":"back","action":"down","source":"keyboard"}`)
	r := send(t, conn, `{"type":"key","key":"back","action":"up","source":"keyboard"}`)
	require.True(t, r.Handled)
	require.False(t, f.status().QuickMenu)

	// with no dialog up, back asks to leave
	send(t, conn, `{"type":"back"}`)
	require.True(t, f.status().ExitDialog)
}

func TestSocketPassThroughAndTouch(t *testing.T) {
	f := newFixture(t)
	conn := f.dial()

	r := send(t, conn, `{"type":"key","key":"a","action":"down"}`)
	require.True(t, r.OK)
	require.Len(t, f.rec.Keys(), 1)
	require.Equal(t, core.KeyButtonA, f.rec.Keys()[0].Code)

	r = send(t, conn, `{"type":"touch","control":"punch","action":"down"}`)
	require.True(t, r.OK)
	r = send(t, conn, `{"type":"touch","control":"punch","action":"up"}`)
	require.True(t, r.OK)

	ptrs := f.rec.Pointers()
	require.Len(t, ptrs, 2)
	require.Equal(t, 1110, ptrs[0].ID)
	require.Equal(t, core.PointerDown, ptrs[0].Action)
	require.Equal(t, core.PointerUp, ptrs[1].Action)

	r = send(t, conn, `{"type":"touch","control":"wheel","action":"down"}`)
	require.False(t, r.OK)
	require.NotEmpty(t, r.Error)

	r = send(t, conn, `{"type":"nope"}`)
	require.False(t, r.OK)
	require.Contains(t, r.Error, "nope")
}

func TestSaveDialogAndSlots(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(http.MethodPost, "/savedialog/open")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["changed"])
	require.True(t, f.status().SaveDialog)

	code, body = f.do(http.MethodPost, "/save/42")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(9), body["slot"])
	require.False(t, f.status().SaveDialog)

	code, body = f.do(http.MethodPost, "/load/-3")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(0), body["slot"])

	calls := f.rec.Calls()
	var slots []string
	for _, c := range calls {
		if c.Kind == core.CallSaveState || c.Kind == core.CallLoadState {
			slots = append(slots, c.String())
		}
	}
	require.Equal(t, []string{"save state 9", "load state 0"}, slots)

	code, _ = f.do(http.MethodPost, "/save/abc")
	require.Equal(t, http.StatusBadRequest, code)

	req := httptest.NewRequest(http.MethodGet, "/slots", nil)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, core.MaxSlot-core.MinSlot+1)
}

func TestRejectedSave(t *testing.T) {
	f := newFixture(t)
	f.rec.Reject = true

	code, body := f.do(http.MethodPost, "/save/2")
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, false, body["ok"])
	require.Contains(t, body["error"], "rejected")
}

func TestPauseToggleAndExit(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodPost, "/pause")
	require.True(t, f.status().UserPaused)
	f.do(http.MethodPost, "/pause")
	require.False(t, f.status().UserPaused)

	code, body := f.do(http.MethodPost, "/exit/close")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, body["changed"])

	code, _ = f.do(http.MethodPost, "/overlay/maybe")
	require.Equal(t, http.StatusBadRequest, code)
	code, body = f.do(http.MethodPost, "/overlay/false")
	require.Equal(t, http.StatusOK, code)
	require.False(t, f.status().OverlayEnabled)

	code, _ = f.do(http.MethodPost, "/exit/confirm")
	require.Equal(t, http.StatusOK, code)
	st := f.status()
	require.True(t, st.Exited)
	require.True(t, st.Closed)

	code, _ = f.do(http.MethodPost, "/quickmenu/open")
	require.Equal(t, http.StatusGone, code)
	code, _ = f.do(http.MethodPost, "/save/1")
	require.Equal(t, http.StatusGone, code)
}

func TestStoppedLoop(t *testing.T) {
	f := newFixture(t)
	f.srv = New(stopped{}, f.s)

	code, body := f.do(http.MethodPost, "/pause")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, loop.ErrStopped.Error(), body["error"])
}

func TestMessageAbandonedByCallerReportsNothingHandled(t *testing.T) {
	f := newFixture(t)
	f.srv = New(late{}, f.s)

	r := f.srv.handleMessage(context.Background(), []byte(`{"type":"key","key":"start","action":"down"}`))
	require.False(t, r.OK)
	require.False(t, r.Handled)
	require.Equal(t, context.Canceled.Error(), r.Error)
}

func TestInputRequiresWebsocket(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/input", nil)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
