package monitor

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/wlctl/internal/observability"
	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type interfaceSummary struct {
	Name     string `json:"name"`
	WireName string `json:"wire_name"`
	Version  uint32 `json:"version"`
	Requests int    `json:"requests"`
	Events   int    `json:"events"`
	Enums    int    `json:"enums"`
}

type messageView struct {
	Opcode     uint16   `json:"opcode"`
	Name       string   `json:"name"`
	Since      uint32   `json:"since"`
	Destructor bool     `json:"destructor,omitempty"`
	Args       []string `json:"args"`
}

type enumView struct {
	Name     string            `json:"name"`
	Bitfield bool              `json:"bitfield,omitempty"`
	Entries  map[string]uint32 `json:"entries"`
}

type interfaceView struct {
	interfaceSummary
	Summary      string        `json:"summary,omitempty"`
	RequestsList []messageView `json:"request_list"`
	EventsList   []messageView `json:"event_list"`
	EnumsList    []enumView    `json:"enum_list"`
	Advertised   []Global      `json:"advertised"`
}

// NewRouter builds the read-only HTTP surface for m.
func NewRouter(m *Monitor, corsOrigins []string) *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(m.Node()))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		st := m.Status()
		code := http.StatusOK
		state := "ok"
		if !st.Connected {
			code = http.StatusServiceUnavailable
			state = "disconnected"
		}
		c.JSON(code, gin.H{
			"status":    state,
			"node":      st.Node,
			"connected": st.Connected,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, m.Status())
	})

	r.GET("/globals", func(c *gin.Context) {
		list := m.Globals().List()
		if iface := c.Query("interface"); iface != "" {
			list = m.Globals().ByInterface(iface)
		}
		if list == nil {
			list = []Global{}
		}
		c.JSON(http.StatusOK, gin.H{"globals": list})
	})

	r.GET("/globals/:name", func(c *gin.Context) {
		name, err := strconv.ParseUint(c.Param("name"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "global name must be an unsigned integer"})
			return
		}
		g, ok := m.Globals().Get(uint32(name))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "global not found"})
			return
		}
		c.JSON(http.StatusOK, g)
	})

	r.GET("/catalog", func(c *gin.Context) {
		ifaces := m.Catalog().Interfaces()
		out := make([]interfaceSummary, 0, len(ifaces))
		for _, iface := range ifaces {
			out = append(out, summarize(iface))
		}
		c.JSON(http.StatusOK, gin.H{"interfaces": out})
	})

	r.GET("/catalog/:interface", func(c *gin.Context) {
		iface, ok := m.Catalog().Interface(c.Param("interface"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "interface not in catalog"})
			return
		}
		view := describe(iface)
		view.Advertised = m.Globals().ByInterface(iface.WireName)
		if view.Advertised == nil {
			view.Advertised = []Global{}
		}
		c.JSON(http.StatusOK, view)
	})

	return r
}

func summarize(iface *schema.Interface) interfaceSummary {
	return interfaceSummary{
		Name:     iface.Name,
		WireName: iface.WireName,
		Version:  iface.Version,
		Requests: len(iface.Requests),
		Events:   len(iface.Events),
		Enums:    len(iface.Enums),
	}
}

func describe(iface *schema.Interface) interfaceView {
	view := interfaceView{
		interfaceSummary: summarize(iface),
		RequestsList:     messages(iface.Requests),
		EventsList:       messages(iface.Events),
		EnumsList:        make([]enumView, 0, len(iface.Enums)),
	}
	if iface.Description != nil {
		view.Summary = iface.Description.Summary
	}
	for _, e := range iface.Enums {
		ev := enumView{Name: e.Name, Bitfield: e.Bitfield, Entries: make(map[string]uint32, len(e.Entries))}
		for _, entry := range e.Entries {
			ev.Entries[entry.Name] = entry.Value
		}
		view.EnumsList = append(view.EnumsList, ev)
	}
	return view
}

func messages(msgs []*schema.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for _, msg := range msgs {
		mv := messageView{
			Opcode:     msg.Opcode,
			Name:       msg.Name,
			Since:      msg.Since,
			Destructor: msg.IsDestructor(),
			Args:       make([]string, 0, len(msg.Args)),
		}
		for _, arg := range msg.Args {
			mv.Args = append(mv.Args, arg.Name+":"+arg.Type.String())
		}
		out = append(out, mv)
	}
	return out
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

// Serve runs handler on addr until ctx ends.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
