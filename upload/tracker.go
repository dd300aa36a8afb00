// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tourbase/chatkit/api"
	"github.com/tourbase/chatkit/lib/clock"
	"github.com/tourbase/chatkit/lib/ref"
	"github.com/tourbase/chatkit/lib/telemetry"
	"github.com/tourbase/chatkit/wire"
)

// DefaultPruneDelay is how long a terminal progress entry stays
// visible before it is removed.
const DefaultPruneDelay = 5 * time.Second

// State is the lifecycle state of one file's upload.
type State string

const (
	StateUploading State = "uploading"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// File is one attachment queued for upload.
type File struct {
	Name        string
	ContentType string
	// Size in bytes, used for percent calculation. Zero is allowed;
	// the entry then jumps from 0 to its terminal state.
	Size    int64
	Content io.Reader
}

// Progress is a point-in-time snapshot of one upload.
type Progress struct {
	// FileID identifies the entry across snapshots. Unrelated to the
	// attachment ID assigned by the server.
	FileID  string
	Name    string
	Percent int
	State   State
	// Err is set when State is StateFailed.
	Err error
}

// Service uploads a single file. *api.Client implements it.
type Service interface {
	UploadFile(ctx context.Context, conversationID ref.ConversationID, name, contentType string, content io.Reader) (*api.UploadResult, error)
}

var _ Service = (*api.Client)(nil)

// TrackerConfig holds configuration for creating a Tracker.
type TrackerConfig struct {
	// Service performs the uploads. Required.
	Service Service
	// Clock drives prune timers. If nil, the real clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// Metrics receives counters. May be nil.
	Metrics *telemetry.Metrics
	// PruneDelay overrides DefaultPruneDelay when positive.
	PruneDelay time.Duration
}

// Tracker uploads attachment batches and exposes per-file progress.
// Safe for concurrent use.
type Tracker struct {
	service    Service
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	pruneDelay time.Duration

	mu      sync.Mutex
	entries map[string]*Progress
	order   []string
}

// NewTracker creates a Tracker.
func NewTracker(config TrackerConfig) (*Tracker, error) {
	if config.Service == nil {
		return nil, fmt.Errorf("upload: Service is required")
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pruneDelay := config.PruneDelay
	if pruneDelay <= 0 {
		pruneDelay = DefaultPruneDelay
	}
	return &Tracker{
		service:    config.Service,
		clock:      clk,
		logger:     logger,
		metrics:    config.Metrics,
		pruneDelay: pruneDelay,
		entries:    make(map[string]*Progress),
	}, nil
}

// KindForMime maps a MIME type to the attachment kind the protocol
// distinguishes: "image" for image/*, "file" for everything else.
func KindForMime(contentType string) string {
	if strings.HasPrefix(contentType, "image/") {
		return "image"
	}
	return "file"
}

// UploadBatch uploads the files concurrently and returns the resulting
// attachments in the original file order. Files that fail are dropped
// from the result; their errors are joined into the returned error.
// The batch succeeds partially by design — callers get both the
// attachments that made it and the reasons for the ones that did not.
func (t *Tracker) UploadBatch(ctx context.Context, conversationID ref.ConversationID, files []File) ([]wire.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}

	type slot struct {
		attachment *wire.Attachment
		err        error
	}
	results := make([]slot, len(files))

	var group sync.WaitGroup
	for i := range files {
		file := files[i]
		fileID := t.register(file)
		group.Add(1)
		go func(index int, fileID string) {
			defer group.Done()
			attachment, err := t.uploadOne(ctx, conversationID, fileID, file)
			results[index] = slot{attachment: attachment, err: err}
		}(i, fileID)
	}
	group.Wait()

	var attachments []wire.Attachment
	var failures []error
	for i, result := range results {
		if result.err != nil {
			failures = append(failures, fmt.Errorf("upload: %s: %w", files[i].Name, result.err))
			continue
		}
		attachments = append(attachments, *result.attachment)
	}
	return attachments, errors.Join(failures...)
}

// Snapshot returns the current progress entries in creation order.
func (t *Tracker) Snapshot() []Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make([]Progress, 0, len(t.order))
	for _, fileID := range t.order {
		if entry, ok := t.entries[fileID]; ok {
			snapshot = append(snapshot, *entry)
		}
	}
	return snapshot
}

func (t *Tracker) register(file File) string {
	fileID := "file_" + uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[fileID] = &Progress{
		FileID: fileID,
		Name:   file.Name,
		State:  StateUploading,
	}
	t.order = append(t.order, fileID)
	return fileID
}

func (t *Tracker) uploadOne(ctx context.Context, conversationID ref.ConversationID, fileID string, file File) (*wire.Attachment, error) {
	reader := &progressReader{
		reader: file.Content,
		total:  file.Size,
		onProgress: func(percent int) {
			t.setPercent(fileID, percent)
		},
	}

	result, err := t.service.UploadFile(ctx, conversationID, file.Name, file.ContentType, reader)
	if err != nil {
		t.finish(fileID, StateFailed, err)
		t.metrics.UploadOutcome("failed")
		t.logger.Warn("attachment upload failed", "name", file.Name, "error", err)
		return nil, err
	}

	t.finish(fileID, StateCompleted, nil)
	t.metrics.UploadOutcome("completed")
	return &wire.Attachment{
		ID:           result.ID,
		Kind:         KindForMime(file.ContentType),
		Name:         file.Name,
		URL:          result.URL,
		Size:         file.Size,
		MimeType:     file.ContentType,
		ThumbnailURL: result.ThumbnailURL,
	}, nil
}

func (t *Tracker) setPercent(fileID string, percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[fileID]; ok && entry.State == StateUploading {
		entry.Percent = percent
	}
}

// finish moves an entry to its terminal state and arms the prune timer.
func (t *Tracker) finish(fileID string, state State, err error) {
	t.mu.Lock()
	if entry, ok := t.entries[fileID]; ok {
		entry.State = state
		entry.Err = err
		if state == StateCompleted {
			entry.Percent = 100
		}
	}
	t.mu.Unlock()

	t.clock.AfterFunc(t.pruneDelay, func() {
		t.prune(fileID)
	})
}

func (t *Tracker) prune(fileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, fileID)
	for i, id := range t.order {
		if id == fileID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// progressReader counts bytes as the HTTP client consumes them and
// reports the running percentage.
type progressReader struct {
	reader     io.Reader
	total      int64
	read       int64
	onProgress func(percent int)
}

func (p *progressReader) Read(buffer []byte) (int, error) {
	n, err := p.reader.Read(buffer)
	if n > 0 && p.total > 0 {
		p.read += int64(n)
		percent := int(p.read * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		p.onProgress(percent)
	}
	return n, err
}
