package endpoint

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openfathom/hydroml/internal/cluster"
)

// Server is the per-worker endpoint: the one actor in each worker process
// that answers the coordinator's bootstrap messages. It owns the HTTP
// machinery only; the compute node behind it outlives the server.
type Server struct {
	node   ComputeNode
	e      *echo.Echo
	listen string
}

// NewServer wires the protocol routes around a compute node.
func NewServer(listen string, node ComputeNode) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{node: node, e: e, listen: listen}

	e.POST("/worker/start", StartWorkerHandler(node))
	e.POST("/worker/flatfile", DistributeHandler(node))
	e.GET("/worker/size", ClusterSizeHandler(node))
	e.POST("/worker/lock", LockHandler(node))
	e.GET("/worker/leader", LeaderHandler(node))
	e.POST("/worker/stop", StopHandler(s))
	e.GET("/health", HealthHandler(node))

	return s
}

// Start serves until Stop or a fatal listen error. Run it in a goroutine and
// treat http.ErrServerClosed as a normal stop, like any daemon main does.
func (s *Server) Start() error {
	return s.e.Start(s.listen)
}

// Stop shuts the endpoint's HTTP server down. The compute node keeps running:
// teardown releases the bootstrap RPC machinery, never the cloud itself.
func (s *Server) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// Handler exposes the endpoint's HTTP handler so hosts embedding the
// endpoint in an existing server (and tests) can mount it directly.
func (s *Server) Handler() http.Handler {
	return s.e
}

// URL returns the listener address once Start has bound it, for tests and
// registration.
func (s *Server) URL() string {
	if l := s.e.Listener; l != nil {
		return "http://" + l.Addr().String()
	}
	return "http://" + s.listen
}

// StartWorkerHandler spawns or reports the local compute node and replies
// with its descriptor. The protocol sends this exactly once per session.
func StartWorkerHandler(node ComputeNode) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req cluster.StartWorkerRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad json")
		}
		desc, err := node.Start(c.Request().Context(), req.Config)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		log.Printf("endpoint: compute node up at %s", desc.Addr())
		return c.JSON(http.StatusOK, cluster.StartWorkerResponse{Node: desc})
	}
}

// DistributeHandler stores the flat membership file on the local compute
// node. Idempotent: a repeated broadcast overwrites the previous list.
func DistributeHandler(node ComputeNode) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req cluster.DistributeRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad json")
		}
		if err := node.Distribute(c.Request().Context(), req.Nodes, req.PortOffset); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// ClusterSizeHandler passes the coordinator's barrier poll straight through
// to the compute node so the answer always reflects live state.
func ClusterSizeHandler(node ComputeNode) echo.HandlerFunc {
	return func(c echo.Context) error {
		size, err := node.Size(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, cluster.ClusterSizeResponse{Size: size})
	}
}

// LockHandler closes cloud membership. One-shot; a duplicate lock surfaces as
// a conflict so the protocol violation is visible.
func LockHandler(node ComputeNode) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := node.Lock(c.Request().Context()); err != nil {
			status := http.StatusInternalServerError
			if err == ErrAlreadyLocked {
				status = http.StatusConflict
			}
			return echo.NewHTTPError(status, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// LeaderHandler reports the locally-known leader, or an empty body while the
// election has not converged.
func LeaderHandler(node ComputeNode) echo.HandlerFunc {
	return func(c echo.Context) error {
		leader, ok, err := node.Leader(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		resp := cluster.LeaderResponse{}
		if ok {
			resp.Leader = &leader
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// StopHandler releases the endpoint's resources. The response is written
// before the shutdown kicks off so the coordinator's stop call never races
// the listener closing.
func StopHandler(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Stop(ctx); err != nil {
				log.Printf("endpoint: shutdown: %v", err)
			}
		}()
		return c.NoContent(http.StatusNoContent)
	}
}

// HealthHandler answers liveness probes. Nodes that expose a Ping (the
// process-backed runtime) are probed through; others are healthy once the
// endpoint serves.
func HealthHandler(node ComputeNode) echo.HandlerFunc {
	type pinger interface{ Ping(context.Context) error }
	return func(c echo.Context) error {
		if p, ok := node.(pinger); ok {
			if err := p.Ping(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
			}
		}
		return c.NoContent(http.StatusOK)
	}
}
