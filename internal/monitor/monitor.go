package monitor

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/danmuck/wlctl/internal/config"
	"github.com/danmuck/wlctl/internal/observability"
	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/danmuck/wlctl/internal/protocol/session"
	"github.com/danmuck/wlctl/internal/protocol/wire"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultSyncInterval = 5 * time.Second

var ErrNoCatalog = errors.New("monitor: catalog is required")

// DialFunc opens a connection. Tests swap it for a socketpair peer.
type DialFunc func(session.Config, *schema.Catalog) (*session.Conn, error)

type Config struct {
	Node         string
	Session      session.Config
	Catalog      *schema.Catalog
	Backoff      config.Backoff
	SyncInterval time.Duration
	Dial         DialFunc
}

// Status is a point-in-time view of the monitor's connection.
type Status struct {
	Node        string    `json:"node"`
	Connected   bool      `json:"connected"`
	Attempts    int       `json:"attempts"`
	Connects    int       `json:"connects"`
	LastError   string    `json:"last_error,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitzero"`
	LastSync    time.Time `json:"last_sync,omitzero"`
	Globals     int       `json:"globals"`
}

// Monitor holds one display connection open, reconnecting with backoff,
// and mirrors the registry globals it advertises.
type Monitor struct {
	cfg     Config
	log     zerolog.Logger
	globals *Globals
	rng     *rand.Rand

	mu     sync.RWMutex
	status Status
}

func New(cfg Config) (*Monitor, error) {
	if cfg.Catalog == nil {
		return nil, ErrNoCatalog
	}
	if strings.TrimSpace(cfg.Node) == "" {
		cfg.Node = "wlmon"
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.Dial == nil {
		cfg.Dial = session.Connect
	}
	if cfg.Session.Metrics == nil {
		cfg.Session.Metrics = observability.NewWireMetrics(cfg.Node)
	}
	return &Monitor{
		cfg:     cfg,
		log:     log.With().Str("node", cfg.Node).Logger(),
		globals: NewGlobals(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		status:  Status{Node: cfg.Node},
	}, nil
}

func (m *Monitor) Node() string {
	return m.cfg.Node
}

func (m *Monitor) Catalog() *schema.Catalog {
	return m.cfg.Catalog
}

func (m *Monitor) Globals() *Globals {
	return m.globals
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.status
	out.Globals = m.globals.Len()
	return out
}

func (m *Monitor) update(fn func(*Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.status)
}

// inherited connections cannot be reopened once closed.
func (m *Monitor) inherited() bool {
	return m.cfg.Session.SocketFD >= 0
}

// Run connects and watches until ctx ends. A lost connection is retried
// under the backoff policy; Run returns nil on cancellation and the last
// error once retries are exhausted.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		conn, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		err = m.watch(ctx, conn)
		_ = conn.Close()
		m.globals.Reset()
		observability.SetGlobals(m.cfg.Node, 0)
		m.update(func(s *Status) {
			s.Connected = false
			if err != nil && ctx.Err() == nil {
				s.LastError = err.Error()
			}
		})
		if ctx.Err() != nil {
			return nil
		}
		if m.inherited() {
			return err
		}
		if session.IsExpectedCloseError(err) {
			m.log.Info().Msgf("monitor.Run display closed err=%v", err)
		} else {
			m.log.Warn().Err(err).Msg("monitor.Run connection lost")
		}
		if !sleepCtx(ctx, nextDelay(m.cfg.Backoff, 1, m.rng)) {
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Monitor) connect(ctx context.Context) (*session.Conn, error) {
	op := func() (*session.Conn, error) {
		m.update(func(s *Status) { s.Attempts++ })
		conn, err := m.cfg.Dial(m.cfg.Session, m.cfg.Catalog)
		observability.RecordConnectAttempt(m.cfg.Node, err == nil)
		if err != nil {
			m.update(func(s *Status) { s.LastError = err.Error() })
			if m.inherited() || errors.Is(err, session.ErrNoRuntimeDir) || errors.Is(err, session.ErrBadSocketFD) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return conn, nil
	}
	notify := func(err error, wait time.Duration) {
		m.log.Debug().Msgf("monitor.connect retry in=%s err=%v", wait, err)
	}
	b := backoff.WithContext(retryPolicy(m.cfg.Backoff, m.rng), ctx)
	conn, err := backoff.RetryNotifyWithData(op, b, notify)
	if err != nil {
		return nil, err
	}
	m.log.Info().Msgf("monitor.connect fd=%d", conn.Fd())
	return conn, nil
}

// watch binds wl_registry, waits for the initial burst of globals, then
// dispatches events, sending a sync whenever the display is idle for a
// full interval.
func (m *Monitor) watch(ctx context.Context, conn *session.Conn) error {
	d := session.NewDispatcher()
	reg, err := conn.RequestByName(conn.Display(), "get_registry", wire.NewID(0))
	if err != nil {
		return err
	}
	d.HandleObject(reg, m.handleRegistry)
	if err := conn.Roundtrip(ctx, d); err != nil {
		return err
	}
	now := time.Now()
	m.update(func(s *Status) {
		s.Connected = true
		s.Connects++
		s.ConnectedAt = now
		s.LastSync = now
		s.LastError = ""
	})
	m.log.Info().Msgf("monitor.watch globals=%d", m.globals.Len())

	for {
		waitCtx, cancel := context.WithTimeout(ctx, m.cfg.SyncInterval)
		ev, err := conn.Wait(waitCtx)
		cancel()
		switch {
		case err == nil:
			if err := d.Dispatch(ev); err != nil {
				return err
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			if err := conn.Roundtrip(ctx, d); err != nil {
				return err
			}
			m.update(func(s *Status) { s.LastSync = time.Now() })
		default:
			return err
		}
	}
}

func (m *Monitor) handleRegistry(ev session.Event) error {
	if m.globals.Apply(ev, m.cfg.Catalog) {
		m.log.Debug().Msgf("monitor.registry event=%s globals=%d", ev, m.globals.Len())
		observability.SetGlobals(m.cfg.Node, m.globals.Len())
	}
	return nil
}
