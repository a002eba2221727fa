package server

import "sync"

// Job states reported while an upload is processed.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusNotFound   = "not_found"
)

// Status is one ingest job's progress snapshot.
type Status struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// StatusBoard tracks ingest jobs by video id. Clients start polling the
// moment the upload returns, sometimes before the job has registered, so an
// unknown id reports an initializing placeholder rather than an error.
type StatusBoard struct {
	mu   sync.RWMutex
	jobs map[string]Status
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{jobs: make(map[string]Status)}
}

func (b *StatusBoard) Set(videoID string, status Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[videoID] = status
}

func (b *StatusBoard) Get(videoID string) Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if status, ok := b.jobs[videoID]; ok {
		return status
	}
	return Status{Status: StatusNotFound, Message: "Initializing...", Progress: 0}
}
