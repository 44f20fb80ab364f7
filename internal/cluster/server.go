package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the rank 0 coordination endpoint.
type Server struct {
	Engine *gin.Engine
	Addr   string
	state  *coordState
}

// NewServer builds the coordination routes for a group of size ranks.
// gatherer may be nil, in which case /metrics is not served.
func NewServer(addr string, size int, gatherer prometheus.Gatherer, mode string) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Engine: r,
		Addr:   addr,
		state:  newCoordState(size),
	}

	r.GET("/health", s.healthHandler)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	v1.GET("/broadcast/:seq", s.broadcastHandler)
	v1.POST("/barrier/:epoch", s.barrierHandler)

	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"ranks":  s.state.size,
	})
}

// params reads the path counter and the calling rank. Only non-root ranks
// talk to the server.
func (s *Server) params(c *gin.Context, name string) (int, int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, xerr.ErrorResponse{
			ErrorType: xerr.HttpInvalidRank,
			Message:   fmt.Sprintf("invalid %s %q", name, c.Param(name)),
		})
		return 0, 0, false
	}
	rank, err := strconv.Atoi(c.Query("rank"))
	if err != nil || rank <= Root || rank >= s.state.size {
		c.JSON(http.StatusBadRequest, xerr.ErrorResponse{
			ErrorType: xerr.HttpInvalidRank,
			Message:   fmt.Sprintf("rank %q is not a member of this group", c.Query("rank")),
			Details:   gin.H{"size": s.state.size},
		})
		return 0, 0, false
	}
	return n, rank, true
}

func (s *Server) broadcastHandler(c *gin.Context) {
	seq, rank, ok := s.params(c, "seq")
	if !ok {
		return
	}
	blob, ok := s.state.fetch(seq, rank)
	if !ok {
		c.JSON(http.StatusNotFound, xerr.ErrorResponse{
			ErrorType: xerr.HttpNotReady,
			Message:   fmt.Sprintf("broadcast %d not published yet", seq),
		})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", blob)
}

// barrierResponse is returned by POST /v1/barrier/:epoch.
type barrierResponse struct {
	Epoch    int  `json:"epoch"`
	Arrived  int  `json:"arrived"`
	Released bool `json:"released"`
}

func (s *Server) barrierHandler(c *gin.Context) {
	epoch, rank, ok := s.params(c, "epoch")
	if !ok {
		return
	}
	arrived, released, _ := s.state.arrive(epoch, rank)
	c.JSON(http.StatusOK, barrierResponse{Epoch: epoch, Arrived: arrived, Released: released})
}

// Run listens on s.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("[Cluster] Starting coordination server", "address", ln.Addr().String())

	go func() {
		<-ctx.Done()
		slog.Info("[Cluster] Stopping coordination server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("[Cluster] Coordination server forced to shutdown", "error", err)
		}
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
