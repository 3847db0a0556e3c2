package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lveselov/remedy/internal/healing"
	"github.com/lveselov/remedy/internal/store"
	"go.uber.org/zap"
)

// callerHeader carries the caller credential on healing requests.
const callerHeader = "X-Caller-Token"

// Healer runs healing attempts and reports their progress. Satisfied by
// healing.Orchestrator.
type Healer interface {
	RunAttempt(ctx context.Context, projectID, credential, attemptID string) (*healing.Report, error)
	Current(ctx context.Context, projectID string) (healing.ProjectHealingState, error)
}

// Archive reads persisted reports and the stage audit trail.
type Archive interface {
	ListReports(ctx context.Context, projectID string, limit int) ([]healing.Report, error)
	Events(ctx context.Context, projectID string, limit int) ([]store.StageEvent, error)
}

// BuildReader fetches console logs and build outcomes for the
// build-inspection read path.
type BuildReader interface {
	ConsoleLog(ctx context.Context, job string, number int) (string, error)
	BuildResult(ctx context.Context, job string, number int) (healing.BuildResult, error)
}

// Server is the JSON API surface of the service.
type Server struct {
	healer     Healer
	archive    Archive
	builds     BuildReader
	directory  healing.ProjectDirectory
	log        *zap.Logger
	runTimeout time.Duration

	engine *gin.Engine
}

// NewServer creates a Server and registers its routes.
func NewServer(healer Healer, archive Archive, builds BuildReader, directory healing.ProjectDirectory, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		healer:     healer,
		archive:    archive,
		builds:     builds,
		directory:  directory,
		log:        log,
		runTimeout: 30 * time.Minute,
		engine:     gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	{
		api.POST("/projects/:id/self-cicd/resolve", s.handleResolve)
		api.GET("/projects/:id/self-cicd/status", s.handleStatus)
		api.GET("/projects/:id/self-cicd/events", s.handleEvents)
		api.GET("/projects/:id/reports", s.handleReports)
		api.GET("/projects/:id/builds/:number", s.handleBuildDetail)
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.log.Info("api listening", zap.String("addr", addr))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
