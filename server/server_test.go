package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framepoint/framepoint/agent"
	"github.com/framepoint/framepoint/config"
	"github.com/framepoint/framepoint/searchindex"
	"github.com/framepoint/framepoint/transcribe"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTurns struct {
	events []agent.Event
	err    error
	got    agent.Turn
}

func (f *fakeTurns) StreamTurn(_ context.Context, turn agent.Turn) (<-chan agent.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = turn
	ch := make(chan agent.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type fakeIndexer struct {
	ensureErr error
	upsertErr error
	segments  []searchindex.Segment
}

func (f *fakeIndexer) EnsureCollection(context.Context) error {
	return f.ensureErr
}

func (f *fakeIndexer) Upsert(_ context.Context, segments []searchindex.Segment) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.segments = append(f.segments, segments...)
	return len(segments), nil
}

type fakeTranscriber struct {
	extractErr    error
	transcribeErr error
	segments      []transcribe.Segment
}

func (f *fakeTranscriber) ExtractAudio(_ context.Context, _, audioPath string) error {
	if f.extractErr != nil {
		return f.extractErr
	}
	return os.WriteFile(audioPath, []byte("mp3"), 0o644)
}

func (f *fakeTranscriber) Transcribe(context.Context, string) ([]transcribe.Segment, error) {
	if f.transcribeErr != nil {
		return nil, f.transcribeErr
	}
	return f.segments, nil
}

func newTestServer(t *testing.T, turns TurnStreamer, index SegmentIndexer, trans Transcriber) (*Server, *gin.Engine) {
	t.Helper()
	if turns == nil {
		turns = &fakeTurns{}
	}
	if index == nil {
		index = &fakeIndexer{}
	}
	if trans == nil {
		trans = &fakeTranscriber{}
	}
	cfg := config.Config{
		Mode:          "development",
		Host:          "127.0.0.1",
		Port:          8000,
		UploadDir:     t.TempDir(),
		PublicBaseURL: "http://127.0.0.1:8000",
	}
	srv, err := New(cfg, turns, index, trans)
	require.NoError(t, err)
	return srv, srv.Router()
}

func doRequest(engine *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	engine.ServeHTTP(w, req)
	return w
}

func TestRootReportsActive(t *testing.T) {
	t.Parallel()

	_, engine := newTestServer(t, nil, nil, nil)
	w := doRequest(engine, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "active", body["status"])
}

func TestStatusUnknownVideo(t *testing.T) {
	t.Parallel()

	_, engine := newTestServer(t, nil, nil, nil)
	w := doRequest(engine, http.MethodGet, "/api/v1/status/nope", "")

	require.Equal(t, http.StatusOK, w.Code)
	var st Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, Status{Status: StatusNotFound, Message: "Initializing...", Progress: 0}, st)
}

func TestVideosListingFiltersByUserAndExtension(t *testing.T) {
	t.Parallel()

	srv, engine := newTestServer(t, nil, nil, nil)
	for _, name := range []string{
		"u1___id1___tour of the lab.mp4",
		"u1___id2___demo.MOV",
		"u2___id3___other.mp4",
		"u1___id4___notes.txt",
		"u1___id1___tour of the lab.mp4.transcript.json",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(srv.cfg.UploadDir, name), []byte("x"), 0o644))
	}

	w := doRequest(engine, http.MethodGet, "/api/v1/videos?user_id=u1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Videos []videoEntry `json:"videos"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Videos, 2)

	names := []string{body.Videos[0].Filename, body.Videos[1].Filename}
	assert.Contains(t, names, "u1___id1___tour of the lab.mp4")
	assert.Contains(t, names, "u1___id2___demo.MOV")

	for _, v := range body.Videos {
		assert.True(t, strings.HasPrefix(v.URL, "http://127.0.0.1:8000/static/"), "url=%s", v.URL)
	}
}

func TestVideosListingWithoutUserReturnsEverything(t *testing.T) {
	t.Parallel()

	srv, engine := newTestServer(t, nil, nil, nil)
	for _, name := range []string{"u1___a___x.mp4", "u2___b___y.mkv"} {
		require.NoError(t, os.WriteFile(filepath.Join(srv.cfg.UploadDir, name), []byte("x"), 0o644))
	}

	w := doRequest(engine, http.MethodGet, "/api/v1/videos", "")
	var body struct {
		Videos []videoEntry `json:"videos"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Videos, 2)
}

func TestVideosListingMissingDirIsEmpty(t *testing.T) {
	t.Parallel()

	srv, engine := newTestServer(t, nil, nil, nil)
	require.NoError(t, os.RemoveAll(srv.cfg.UploadDir))

	w := doRequest(engine, http.MethodGet, "/api/v1/videos", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"videos":[]}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	_, engine := newTestServer(t, nil, nil, nil)
	w := doRequest(engine, http.MethodOptions, "/api/v1/chat", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
