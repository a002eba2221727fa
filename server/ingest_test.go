package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framepoint/framepoint/fileutil"
	"github.com/framepoint/framepoint/transcribe"
)

func uploadRequest(t *testing.T, userID, filename string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if userID != "" {
		require.NoError(t, mw.WriteField("user_id", userID))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake video bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest-video", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// waitForTerminalStatus polls the status endpoint the way a client would.
func waitForTerminalStatus(t *testing.T, engine http.Handler, videoID string) Status {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status/"+videoID, nil))
		var st Status
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
		if st.Status == StatusCompleted || st.Status == StatusError {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", videoID)
	return Status{}
}

func TestIngestValidation(t *testing.T) {
	t.Parallel()

	_, engine := newTestServer(t, nil, nil, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "u1", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "", "clip.mp4"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestPipelineCompletes(t *testing.T) {
	t.Parallel()

	index := &fakeIndexer{}
	trans := &fakeTranscriber{segments: []transcribe.Segment{
		{Start: 0, End: 5, Text: "welcome to the demo"},
		{Start: 5, End: 11, Text: "first we open the dashboard"},
	}}
	srv, engine := newTestServer(t, nil, index, trans)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "u1", "product demo.mp4"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		VideoID  string `json:"video_id"`
		Filename string `json:"filename"`
		UserID   string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.VideoID)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, "u1___"+resp.VideoID+"___product_demo.mp4", resp.Filename)

	st := waitForTerminalStatus(t, engine, resp.VideoID)
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, "Ready to Chat!", st.Message)
	assert.Equal(t, 100, st.Progress)

	// Upload stored, transcript artifact written, audio scratch removed.
	videoPath := filepath.Join(srv.cfg.UploadDir, resp.Filename)
	assert.True(t, fileutil.FileExists(videoPath))
	assert.True(t, fileutil.FileExists(transcribe.TranscriptPath(videoPath)))
	assert.False(t, fileutil.FileExists(videoPath+".mp3"))

	// Indexed segments carry the ownership and citation metadata.
	require.Len(t, index.segments, 1) // both raw segments merge into one window
	seg := index.segments[0]
	assert.Equal(t, "u1", seg.UserID)
	assert.Equal(t, resp.VideoID, seg.VideoID)
	assert.Equal(t, resp.Filename, seg.Filename)
	assert.Equal(t, "product_demo.mp4", seg.Title)
	assert.Equal(t, 0.0, seg.StartTime)
	assert.Equal(t, 11.0, seg.EndTime)
	assert.Equal(t, "welcome to the demo first we open the dashboard", seg.Text)
}

func TestIngestReportsExtractionFailure(t *testing.T) {
	t.Parallel()

	trans := &fakeTranscriber{extractErr: errors.New("ffmpeg exploded")}
	_, engine := newTestServer(t, nil, nil, trans)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "u1", "clip.mp4"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		VideoID string `json:"video_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	st := waitForTerminalStatus(t, engine, resp.VideoID)
	assert.Equal(t, StatusError, st.Status)
	assert.Contains(t, st.Message, "Error: ")
	assert.Contains(t, st.Message, "ffmpeg exploded")
}

func TestIngestReportsIndexingFailure(t *testing.T) {
	t.Parallel()

	index := &fakeIndexer{upsertErr: errors.New("qdrant offline")}
	trans := &fakeTranscriber{segments: []transcribe.Segment{{Start: 0, End: 2, Text: "hi"}}}
	_, engine := newTestServer(t, nil, index, trans)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "u1", "clip.mp4"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		VideoID string `json:"video_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	st := waitForTerminalStatus(t, engine, resp.VideoID)
	assert.Equal(t, StatusError, st.Status)
	assert.Contains(t, st.Message, "qdrant offline")
}

func TestUploadedFileIsServedStatically(t *testing.T) {
	t.Parallel()

	srv, engine := newTestServer(t, nil, nil, nil)
	name := "u1___vid___clip.mp4"
	require.NoError(t, os.WriteFile(filepath.Join(srv.cfg.UploadDir, name), []byte("bytes"), 0o644))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/"+name, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bytes", w.Body.String())
}
