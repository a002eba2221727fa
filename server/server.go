// Package server exposes the HTTP surface: the streaming chat endpoint,
// video ingestion, job status polling, the video library, and static hosting
// of uploaded files.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/framepoint/framepoint/agent"
	"github.com/framepoint/framepoint/config"
	"github.com/framepoint/framepoint/searchindex"
	"github.com/framepoint/framepoint/transcribe"
)

// TurnStreamer runs one conversation turn as an ordered event stream.
type TurnStreamer interface {
	StreamTurn(ctx context.Context, turn agent.Turn) (<-chan agent.Event, error)
}

// SegmentIndexer stores transcript segments for retrieval.
type SegmentIndexer interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, segments []searchindex.Segment) (int, error)
}

// Transcriber turns an uploaded video into timed transcript segments.
type Transcriber interface {
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	Transcribe(ctx context.Context, audioPath string) ([]transcribe.Segment, error)
}

// Server wires the HTTP handlers to the conversation and ingest pipelines.
type Server struct {
	cfg   config.Config
	turns TurnStreamer
	index SegmentIndexer
	trans Transcriber
	board *StatusBoard
}

func New(cfg config.Config, turns TurnStreamer, index SegmentIndexer, trans Transcriber) (*Server, error) {
	if turns == nil {
		return nil, errors.New("New: turns is nil")
	}
	if index == nil {
		return nil, errors.New("New: index is nil")
	}
	if trans == nil {
		return nil, errors.New("New: trans is nil")
	}
	return &Server{cfg: cfg, turns: turns, index: index, trans: trans, board: NewStatusBoard()}, nil
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	router.GET("/", s.handleRoot)
	router.Static("/static", s.cfg.UploadDir)

	api := router.Group("/api/v1")
	api.POST("/chat", s.handleChat)
	api.POST("/ingest-video", s.handleIngest)
	api.GET("/status/:video_id", s.handleStatus)
	api.GET("/videos", s.handleVideos)

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	srv := &http.Server{Addr: s.cfg.Addr(), Handler: s.Router()}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	log.WithFields(log.Fields{"addr": s.cfg.Addr(), "mode": s.cfg.Mode}).Info("framepoint listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "active", "message": "framepoint video conversation service is running"})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
