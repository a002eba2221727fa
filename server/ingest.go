package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/framepoint/framepoint/fileutil"
	"github.com/framepoint/framepoint/searchindex"
	"github.com/framepoint/framepoint/transcribe"
)

var videoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".avi": true,
	".mkv": true,
}

// handleIngest accepts a multipart video upload, stores it, and starts the
// transcription pipeline in the background. The response returns right away
// with the job's video id; progress is polled via /status.
func (s *Server) handleIngest(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "file is required", "code": http.StatusBadRequest})
		return
	}
	userID := strings.TrimSpace(c.PostForm("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id is required", "code": http.StatusBadRequest})
		return
	}

	videoID := uuid.NewString()
	storedName := SafeFilename(userID, videoID, file.Filename)
	videoPath := filepath.Join(s.cfg.UploadDir, storedName)

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "prepare upload dir: " + err.Error(), "code": http.StatusInternalServerError})
		return
	}
	if err := c.SaveUploadedFile(file, videoPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "store upload: " + err.Error(), "code": http.StatusInternalServerError})
		return
	}

	s.board.Set(videoID, Status{Status: StatusQueued, Message: "Queued for processing...", Progress: 0})

	// The job owns its own context; an upload is not abandoned just because
	// the uploader closed the response early.
	go s.processVideo(context.Background(), videoPath, videoID, userID, storedName)

	c.JSON(http.StatusOK, gin.H{
		"message":  "Video processing started.",
		"video_id": videoID,
		"filename": storedName,
		"user_id":  userID,
	})
}

// processVideo runs extract -> transcribe -> merge -> index, reporting each
// stage to the status board.
func (s *Server) processVideo(ctx context.Context, videoPath, videoID, userID, storedName string) {
	logger := log.WithFields(log.Fields{"video_id": videoID, "user_id": userID})
	logger.Info("video processing started")

	fail := func(stage string, err error) {
		logger.Errorf("%s: %v", stage, err)
		s.board.Set(videoID, Status{Status: StatusError, Message: "Error: " + err.Error(), Progress: 0})
	}

	audioPath := videoPath + ".mp3"
	defer func() {
		if fileutil.FileExists(audioPath) {
			_ = os.Remove(audioPath)
		}
	}()

	s.board.Set(videoID, Status{Status: StatusProcessing, Message: "Extracting Audio from Video...", Progress: 10})
	if err := s.trans.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		fail("extract audio", err)
		return
	}

	s.board.Set(videoID, Status{Status: StatusProcessing, Message: "Transcribing Audio...", Progress: 30})
	raw, err := s.trans.Transcribe(ctx, audioPath)
	if err != nil {
		fail("transcribe", err)
		return
	}

	merged := transcribe.MergeSegments(raw, transcribe.DefaultWindowChars)
	if err := transcribe.WriteTranscript(transcribe.TranscriptPath(videoPath), merged); err != nil {
		// The index is still written; only reindexing-from-artifact is lost.
		logger.Warnf("transcript artifact not written: %v", err)
	}

	s.board.Set(videoID, Status{Status: StatusProcessing, Message: "Generating Vector Embeddings & Indexing...", Progress: 80})
	title := DisplayName(storedName)
	segments := make([]searchindex.Segment, 0, len(merged))
	for _, seg := range merged {
		segments = append(segments, searchindex.Segment{
			Text:      seg.Text,
			Filename:  storedName,
			VideoID:   videoID,
			UserID:    userID,
			Title:     title,
			StartTime: seg.Start,
			EndTime:   seg.End,
		})
	}

	if err := s.index.EnsureCollection(ctx); err != nil {
		fail("ensure collection", err)
		return
	}
	if _, err := s.index.Upsert(ctx, segments); err != nil {
		fail("index segments", err)
		return
	}

	logger.WithFields(log.Fields{"segments": len(segments)}).Info("video indexed")
	s.board.Set(videoID, Status{Status: StatusCompleted, Message: "Ready to Chat!", Progress: 100})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.Get(c.Param("video_id")))
}

type videoEntry struct {
	Filename    string `json:"filename"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
}

// handleVideos lists hosted uploads, newest metadata straight from the
// filesystem. An optional user_id query narrows the listing to one owner.
func (s *Server) handleVideos(c *gin.Context) {
	userID := c.Query("user_id")

	videos := make([]videoEntry, 0)
	entries, err := os.ReadDir(s.cfg.UploadDir)
	if err != nil {
		// A missing upload dir is an empty library, not a failure.
		c.JSON(http.StatusOK, gin.H{"videos": videos})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !videoExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		if userID != "" && !strings.HasPrefix(name, userID+filenameSeparator) {
			continue
		}
		videos = append(videos, videoEntry{
			Filename:    name,
			DisplayName: DisplayName(name),
			URL:         s.cfg.PublicBaseURL + "/static/" + name,
		})
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos})
}
