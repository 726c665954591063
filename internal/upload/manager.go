// Package upload runs media uploads as async jobs: store the blob, place the
// item on its week, then tag it.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moodboard/backend/internal/logging"
	"github.com/moodboard/backend/internal/models"
	"github.com/moodboard/backend/internal/storage"
	"github.com/moodboard/backend/internal/tagging"
)

// Status represents the upload processing status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSaving   Status = "saving"
	StatusTagging  Status = "tagging"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// DefaultTagTimeout bounds one tagging call inside a job.
const DefaultTagTimeout = 2 * time.Minute

// Request is one file to place on a week's board at canvas point (X, Y).
type Request struct {
	WeekID   string
	Name     string
	Data     []byte
	X        int
	Y        int
	Language string
}

// Job represents an async upload processing job.
type Job struct {
	ID          string       `json:"id"`
	WeekID      string       `json:"weekId"`
	FileName    string       `json:"fileName"`
	Size        int          `json:"size"`
	Status      Status       `json:"status"`
	Progress    float64      `json:"progress"`
	Stage       string       `json:"stage"`
	Item        *models.Item `json:"item,omitempty"`
	TagError    string       `json:"tagError,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// snapshot copies the job so callers never share memory with the worker.
// Must be called with the manager lock held.
func (j *Job) snapshot() *Job {
	cp := *j
	if j.Item != nil {
		item := *j.Item
		item.Tags = append([]string(nil), j.Item.Tags...)
		item.Colors = append([]string(nil), j.Item.Colors...)
		cp.Item = &item
	}
	return &cp
}

// Manager handles async upload processing. Jobs run independently; there is
// no retry and no ordering between them.
type Manager struct {
	jobs       map[string]*Job
	mu         sync.RWMutex
	media      storage.MediaStore
	board      storage.BoardStore
	tagger     tagging.Tagger
	tagTimeout time.Duration
	log        zerolog.Logger
}

// NewManager creates a new upload processing manager. A nil tagger disables
// tagging.
func NewManager(media storage.MediaStore, board storage.BoardStore, tagger tagging.Tagger) *Manager {
	if tagger == nil {
		tagger = tagging.Nop{}
	}
	return &Manager{
		jobs:       make(map[string]*Job),
		media:      media,
		board:      board,
		tagger:     tagger,
		tagTimeout: DefaultTagTimeout,
		log:        logging.Component("upload"),
	}
}

// Start registers a job and processes it in the background. onDone, if set,
// receives the final job from the worker goroutine.
func (m *Manager) Start(req Request, onDone func(*Job)) *Job {
	job := &Job{
		ID:        uuid.New().String(),
		WeekID:    req.WeekID,
		FileName:  req.Name,
		Size:      len(req.Data),
		Status:    StatusPending,
		Stage:     "queued",
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snap := job.snapshot()
	m.mu.Unlock()

	go m.processJob(job, req, onDone)

	return snap
}

// GetJob retrieves a snapshot of a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.snapshot(), true
}

func (m *Manager) processJob(job *Job, req Request, onDone func(*Job)) {
	log := m.log.With().Str("job", job.ID).Str("week", req.WeekID).Logger()
	log.Info().Str("file", req.Name).Int("bytes", len(req.Data)).Msg("upload started")

	final := m.run(job, req, log)
	if onDone != nil {
		onDone(final)
	}
}

func (m *Manager) run(job *Job, req Request, log zerolog.Logger) *Job {
	m.updateJobStatus(job, StatusSaving, "saving media", 0)

	info, err := m.media.Save(req.Name, bytes.NewReader(req.Data))
	if err != nil {
		return m.markJobError(job, log, fmt.Errorf("saving media: %w", err))
	}

	kind, _ := models.KindForMime(info.MimeType)
	item := &models.Item{
		WeekID:   req.WeekID,
		MediaID:  info.ID,
		Kind:     kind,
		Name:     req.Name,
		MimeType: info.MimeType,
		X:        req.X,
		Y:        req.Y,
		Language: req.Language,
	}
	ctx := context.Background()
	if err := m.board.CreateItem(ctx, item); err != nil {
		if derr := m.media.Delete(info.ID); derr != nil {
			log.Warn().Err(derr).Str("media", info.ID).Msg("orphaned media not removed")
		}
		return m.markJobError(job, log, fmt.Errorf("creating item: %w", err))
	}

	m.mu.Lock()
	job.Item = item
	m.mu.Unlock()
	m.updateJobStatus(job, StatusTagging, "tagging", 0)

	tagCtx, cancel := context.WithTimeout(ctx, m.tagTimeout)
	tags, err := m.tagger.Tag(tagCtx, req.Data, info.MimeType, req.Language)
	cancel()
	switch {
	case err != nil:
		// The item stays on the board untagged.
		log.Warn().Err(err).Str("item", item.ID).Msg("tagging failed")
		m.mu.Lock()
		job.TagError = err.Error()
		m.mu.Unlock()
	case len(tags) > 0:
		if err := m.board.SetTags(ctx, item.ID, tags); err != nil {
			log.Warn().Err(err).Str("item", item.ID).Msg("storing tags failed")
		} else {
			m.mu.Lock()
			item.Tags = tags
			m.mu.Unlock()
		}
	}

	final := m.markJobComplete(job)
	log.Info().Str("item", item.ID).Int("tags", len(final.Item.Tags)).Msg("upload complete")
	return final
}

// TagItem re-runs tagging for an existing item and stores the result.
func (m *Manager) TagItem(ctx context.Context, itemID string) ([]string, error) {
	item, err := m.board.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	rc, info, err := m.media.Open(item.MediaID)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("reading media: %w", err)
	}

	tagCtx, cancel := context.WithTimeout(ctx, m.tagTimeout)
	defer cancel()
	tags, err := m.tagger.Tag(tagCtx, data, info.MimeType, item.Language)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	if err := m.board.SetTags(ctx, itemID, tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// updateJobStatus updates job progress (thread-safe).
func (m *Manager) updateJobStatus(job *Job, status Status, stage string, stageProgress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = status
	job.Stage = stage

	// Saving: 0-50%, Tagging: 50-100%
	switch status {
	case StatusSaving:
		job.Progress = stageProgress * 0.5
	case StatusTagging:
		job.Progress = 50 + stageProgress*0.5
	case StatusComplete:
		job.Progress = 100
	}
}

// markJobComplete marks job as complete (thread-safe).
func (m *Manager) markJobComplete(job *Job) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Stage = "done"
	job.Progress = 100
	now := time.Now()
	job.CompletedAt = &now
	return job.snapshot()
}

// markJobError marks job as failed (thread-safe).
func (m *Manager) markJobError(job *Job, log zerolog.Logger, err error) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = err.Error()
	if errors.Is(err, storage.ErrUnsupportedType) {
		job.Error = "only images and videos can be added"
	}
	now := time.Now()
	job.CompletedAt = &now
	log.Error().Err(err).Msg("upload failed")
	return job.snapshot()
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Done() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}
