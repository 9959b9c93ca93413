package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/wlctl/internal/config"
	"github.com/danmuck/wlctl/internal/protocol/coreproto"
	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/danmuck/wlctl/internal/protocol/session"
	"github.com/danmuck/wlctl/internal/protocol/wire"
	"github.com/danmuck/wlctl/internal/testutil/fakedisplay"
	"github.com/danmuck/wlctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var errNoDisplay = errors.New("display unavailable")

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	cat, err := coreproto.Catalog()
	require.NoError(t, err)
	return cat
}

// dialOnce hands out fd on the first call and fails afterwards.
func dialOnce(fd int) (DialFunc, *atomic.Int32) {
	calls := &atomic.Int32{}
	return func(cfg session.Config, cat *schema.Catalog) (*session.Conn, error) {
		if calls.Add(1) > 1 {
			return nil, errNoDisplay
		}
		return session.NewConn(fd, cat, cfg)
	}, calls
}

func newMonitor(t *testing.T, cfg Config) *Monitor {
	t.Helper()
	cfg.Session = session.DefaultConfig()
	if cfg.Node == "" {
		cfg.Node = "mon-" + t.Name()
	}
	m, err := New(cfg)
	require.NoError(t, err)
	return m
}

func runMonitor(t *testing.T, m *Monitor) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not stop")
		return nil
	}
}

// answerInitialSync serves get_registry, advertises globals and answers the
// first sync. It returns the registry id.
func answerInitialSync(t *testing.T, srv *fakedisplay.Server, globals ...Global) uint32 {
	t.Helper()
	req := srv.Next()
	require.Equal(t, "get_registry", req.Name())
	regID := req.Arg("registry").Object
	for _, g := range globals {
		srv.Send(regID, "global", wire.Uint(g.Name), wire.String(g.Interface), wire.Uint(g.Version))
	}
	answerSync(t, srv)
	return regID
}

func answerSync(t *testing.T, srv *fakedisplay.Server) {
	t.Helper()
	req := srv.Next()
	require.Equal(t, "sync", req.Name())
	cb := req.Arg("callback").Object
	srv.Send(cb, "done", wire.Uint(1))
	srv.DeleteID(cb)
}

func getJSON(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestNewRequiresCatalog(t *testing.T) {
	testlog.Start(t)
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrNoCatalog)
}

func TestMonitorTracksGlobalsAndServesThem(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	cat := testCatalog(t)
	srv, fd := fakedisplay.New(t, cat)
	dial, calls := dialOnce(fd)
	m := newMonitor(t, Config{
		Catalog: cat,
		Dial:    dial,
		Backoff: config.Backoff{InitialDelay: 10 * time.Millisecond, Multiplier: 2, MaxAttempts: 1},
	})
	_, errc := runMonitor(t, m)

	regID := answerInitialSync(t, srv,
		Global{Name: 1, Interface: "wl_compositor", Version: 6},
		Global{Name: 2, Interface: "wl_shm", Version: 1},
		Global{Name: 3, Interface: "zz_unknown", Version: 2},
	)
	require.Eventually(t, func() bool { return m.Status().Connected }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 3, m.Status().Globals)

	compositor, _ := cat.Interface("wl_compositor")
	g, ok := m.Globals().Get(1)
	require.True(t, ok)
	require.Equal(t, compositor.Version, g.CatalogVersion)
	unknown, ok := m.Globals().Get(3)
	require.True(t, ok)
	require.Zero(t, unknown.CatalogVersion)

	srv.Send(regID, "global_remove", wire.Uint(2))
	require.Eventually(t, func() bool { return m.Globals().Len() == 2 }, 2*time.Second, 5*time.Millisecond)

	router := NewRouter(m, nil)
	var list struct {
		Globals []Global `json:"globals"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, router, "/globals", &list))
	require.Len(t, list.Globals, 2)
	require.Equal(t, "wl_compositor", list.Globals[0].Interface)

	var one Global
	require.Equal(t, http.StatusOK, getJSON(t, router, "/globals/3", &one))
	require.Equal(t, "zz_unknown", one.Interface)
	require.Equal(t, http.StatusBadRequest, getJSON(t, router, "/globals/abc", nil))
	require.Equal(t, http.StatusNotFound, getJSON(t, router, "/globals/2", nil))

	var filtered struct {
		Globals []Global `json:"globals"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, router, "/globals?interface=wl_shm", &filtered))
	require.Empty(t, filtered.Globals)

	var view struct {
		WireName    string        `json:"wire_name"`
		RequestList []messageView `json:"request_list"`
		Advertised  []Global      `json:"advertised"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, router, "/catalog/compositor", &view))
	require.Equal(t, "wl_compositor", view.WireName)
	require.Len(t, view.Advertised, 1)
	require.Equal(t, "create_surface", view.RequestList[0].Name)
	require.Equal(t, []string{"id:new_id<wl_surface>"}, view.RequestList[0].Args)
	require.Equal(t, http.StatusNotFound, getJSON(t, router, "/catalog/nope", nil))

	var summary struct {
		Interfaces []interfaceSummary `json:"interfaces"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, router, "/catalog", &summary))
	require.Len(t, summary.Interfaces, cat.Len())

	require.Equal(t, http.StatusOK, getJSON(t, router, "/health", nil))

	srv.Close()
	err := waitRun(t, errc)
	require.ErrorIs(t, err, errNoDisplay)
	require.Equal(t, int32(2), calls.Load())

	st := m.Status()
	require.False(t, st.Connected)
	require.Equal(t, 1, st.Connects)
	require.Equal(t, 2, st.Attempts)
	require.Zero(t, st.Globals)
	require.Equal(t, http.StatusServiceUnavailable, getJSON(t, router, "/health", nil))
}

func TestMonitorSyncsWhenIdle(t *testing.T) {
	testlog.Start(t)

	cat := testCatalog(t)
	srv, fd := fakedisplay.New(t, cat)
	dial, _ := dialOnce(fd)
	m := newMonitor(t, Config{Catalog: cat, Dial: dial, SyncInterval: 30 * time.Millisecond})
	cancel, errc := runMonitor(t, m)

	answerInitialSync(t, srv)
	require.Eventually(t, func() bool { return m.Status().Connected }, 2*time.Second, 5*time.Millisecond)
	first := m.Status().LastSync

	answerSync(t, srv)
	require.Eventually(t, func() bool { return m.Status().LastSync.After(first) }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, waitRun(t, errc))
}

func TestMonitorSetupErrorsArePermanent(t *testing.T) {
	testlog.Start(t)

	var calls atomic.Int32
	m := newMonitor(t, Config{
		Catalog: testCatalog(t),
		Backoff: config.Backoff{InitialDelay: time.Millisecond},
		Dial: func(session.Config, *schema.Catalog) (*session.Conn, error) {
			calls.Add(1)
			return nil, &session.SetupError{Op: "socket", Err: session.ErrNoRuntimeDir}
		},
	})
	_, errc := runMonitor(t, m)
	require.ErrorIs(t, waitRun(t, errc), session.ErrNoRuntimeDir)
	require.Equal(t, int32(1), calls.Load())
}

func TestMonitorRetriesUntilCancelled(t *testing.T) {
	testlog.Start(t)

	var calls atomic.Int32
	m := newMonitor(t, Config{
		Catalog: testCatalog(t),
		Backoff: config.Backoff{InitialDelay: time.Millisecond, Multiplier: 1},
		Dial: func(session.Config, *schema.Catalog) (*session.Conn, error) {
			calls.Add(1)
			return nil, errNoDisplay
		},
	})
	cancel, errc := runMonitor(t, m)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, waitRun(t, errc))
	require.Contains(t, m.Status().LastError, "display unavailable")
}
