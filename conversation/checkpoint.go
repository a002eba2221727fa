package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// Checkpoint SQL is written with ? bind points and rebound per driver, so the
// store runs against Postgres in production and SQLite in tests unchanged.
const (
	checkpointSchema = `
CREATE TABLE IF NOT EXISTS conversation_checkpoints (
	thread_id  TEXT      NOT NULL,
	step       BIGINT    NOT NULL,
	codec      TEXT      NOT NULL,
	state      BYTEA     NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (thread_id, step)
)`

	checkpointSelectLatest = `
SELECT codec, state FROM conversation_checkpoints
WHERE thread_id = ?
ORDER BY step DESC
LIMIT 1`

	checkpointNextStep = `
SELECT COALESCE(MAX(step), 0) + 1 FROM conversation_checkpoints
WHERE thread_id = ?`

	checkpointUpsert = `
INSERT INTO conversation_checkpoints (thread_id, step, codec, state)
VALUES (?, ?, ?, ?)
ON CONFLICT (thread_id, step) DO UPDATE SET
	codec = excluded.codec,
	state = excluded.state`
)

// CheckpointStore persists one state snapshot per (thread, step). Load never
// fails the caller: a thread with no readable checkpoint simply starts empty.
type CheckpointStore struct {
	pool  *Pool
	codec Codec
}

// NewCheckpointStore binds a store to a pool.
func NewCheckpointStore(pool *Pool) (*CheckpointStore, error) {
	if pool == nil {
		return nil, errors.New("NewCheckpointStore: pool is nil")
	}
	return &CheckpointStore{pool: pool}, nil
}

// Setup creates the checkpoint table. It is idempotent and cheap enough to
// run on every turn, matching a schema-less deploy.
func (s *CheckpointStore) Setup(ctx context.Context) error {
	db, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, checkpointSchema); err != nil {
		return fmt.Errorf("%w: create checkpoint table: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Load returns the latest snapshot for a thread. A missing row, a storage
// error, and an undecodable blob all yield the empty state; only the codec
// path distinguishes them in the logs.
func (s *CheckpointStore) Load(ctx context.Context, threadID string) State {
	if threadID == "" {
		return EmptyState()
	}

	db, err := s.pool.Acquire(ctx)
	if err != nil {
		log.WithFields(log.Fields{"thread_id": threadID}).Warnf("checkpoint load skipped: %v", err)
		return EmptyState()
	}

	var row struct {
		Codec string `db:"codec"`
		State []byte `db:"state"`
	}
	query := db.Rebind(checkpointSelectLatest)
	if err := db.GetContext(ctx, &row, query, threadID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.WithFields(log.Fields{"thread_id": threadID}).Warnf("checkpoint load failed, starting fresh: %v", err)
		}
		return EmptyState()
	}
	return s.codec.DecodeTyped(row.Codec, row.State)
}

// Save writes the state as the thread's next step. Concurrent saves for one
// thread may race to the same step; the upsert makes that last-write-wins.
func (s *CheckpointStore) Save(ctx context.Context, threadID string, state State) error {
	if threadID == "" {
		return errors.New("Save: threadID is empty")
	}

	tag, blob, err := s.codec.EncodeTyped(state)
	if err != nil {
		return err
	}

	db, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	var step int64
	if err := db.GetContext(ctx, &step, db.Rebind(checkpointNextStep), threadID); err != nil {
		return fmt.Errorf("%w: next step: %v", ErrStorageUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, db.Rebind(checkpointUpsert), threadID, step, tag, blob); err != nil {
		return fmt.Errorf("%w: save checkpoint: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// LatestStep reports the highest saved step for a thread, zero when none.
func (s *CheckpointStore) LatestStep(ctx context.Context, threadID string) (int64, error) {
	if threadID == "" {
		return 0, errors.New("LatestStep: threadID is empty")
	}
	db, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	var next int64
	if err := db.GetContext(ctx, &next, db.Rebind(checkpointNextStep), threadID); err != nil {
		return 0, fmt.Errorf("%w: latest step: %v", ErrStorageUnavailable, err)
	}
	return next - 1, nil
}
