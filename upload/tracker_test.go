// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tourbase/chatkit/api"
	"github.com/tourbase/chatkit/lib/clock"
	"github.com/tourbase/chatkit/lib/ref"
)

// fakeService uploads in memory. Files whose name is in failNames
// error out; onUpload, when set, is called with the file content
// reader before the result is produced.
type fakeService struct {
	failNames map[string]bool
	onUpload  func(name string, content io.Reader)
}

func (f *fakeService) UploadFile(ctx context.Context, conversationID ref.ConversationID, name, contentType string, content io.Reader) (*api.UploadResult, error) {
	if f.onUpload != nil {
		f.onUpload(name, content)
	} else if _, err := io.ReadAll(content); err != nil {
		return nil, err
	}
	if f.failNames[name] {
		return nil, fmt.Errorf("storage rejected %s", name)
	}
	return &api.UploadResult{
		ID:  "att_" + name,
		URL: "https://cdn.example/" + name,
	}, nil
}

func newTestTracker(t *testing.T, service Service, clk clock.Clock) *Tracker {
	t.Helper()
	tracker, err := NewTracker(TrackerConfig{Service: service, Clock: clk})
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}
	return tracker
}

func testFile(name, contentType, content string) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(content)),
		Content:     bytes.NewReader([]byte(content)),
	}
}

func TestUploadBatch(t *testing.T) {
	tracker := newTestTracker(t, &fakeService{}, clock.Fake(time.Now()))

	attachments, err := tracker.UploadBatch(context.Background(), ref.MustParseConversationID("c1"), []File{
		testFile("beach.png", "image/png", "png-bytes"),
		testFile("itinerary.pdf", "application/pdf", "pdf-bytes"),
	})
	if err != nil {
		t.Fatalf("UploadBatch failed: %v", err)
	}
	if len(attachments) != 2 {
		t.Fatalf("attachments = %d, want 2", len(attachments))
	}
	if attachments[0].Name != "beach.png" || attachments[1].Name != "itinerary.pdf" {
		t.Errorf("attachment order not preserved: %v, %v", attachments[0].Name, attachments[1].Name)
	}
	if attachments[0].Kind != "image" {
		t.Errorf("png attachment kind = %q, want image", attachments[0].Kind)
	}
	if attachments[1].Kind != "file" {
		t.Errorf("pdf attachment kind = %q, want file", attachments[1].Kind)
	}
	if attachments[0].ID != "att_beach.png" || attachments[0].URL == "" {
		t.Errorf("unexpected attachment: %+v", attachments[0])
	}

	for _, entry := range tracker.Snapshot() {
		if entry.State != StateCompleted || entry.Percent != 100 {
			t.Errorf("entry %s: state=%s percent=%d, want completed/100", entry.Name, entry.State, entry.Percent)
		}
	}
}

func TestUploadBatchPartialFailure(t *testing.T) {
	service := &fakeService{failNames: map[string]bool{"broken.bin": true}}
	tracker := newTestTracker(t, service, clock.Fake(time.Now()))

	attachments, err := tracker.UploadBatch(context.Background(), ref.MustParseConversationID("c1"), []File{
		testFile("first.png", "image/png", "a"),
		testFile("broken.bin", "application/octet-stream", "b"),
		testFile("last.pdf", "application/pdf", "c"),
	})
	if err == nil || !strings.Contains(err.Error(), "broken.bin") {
		t.Fatalf("error = %v, want mention of broken.bin", err)
	}
	if len(attachments) != 2 {
		t.Fatalf("attachments = %d, want the 2 survivors", len(attachments))
	}
	if attachments[0].Name != "first.png" || attachments[1].Name != "last.pdf" {
		t.Errorf("survivor order wrong: %v, %v", attachments[0].Name, attachments[1].Name)
	}

	var failed *Progress
	for _, entry := range tracker.Snapshot() {
		if entry.State == StateFailed {
			entry := entry
			failed = &entry
		}
	}
	if failed == nil || failed.Name != "broken.bin" || failed.Err == nil {
		t.Errorf("failed entry missing or incomplete: %+v", failed)
	}
}

func TestKindForMime(t *testing.T) {
	cases := map[string]string{
		"image/png":                "image",
		"image/jpeg":               "image",
		"application/pdf":          "file",
		"text/plain":               "file",
		"application/octet-stream": "file",
		"":                         "file",
	}
	for contentType, want := range cases {
		if got := KindForMime(contentType); got != want {
			t.Errorf("KindForMime(%q) = %q, want %q", contentType, got, want)
		}
	}
}

func TestTerminalEntriesPruned(t *testing.T) {
	fake := clock.Fake(time.Now())
	tracker := newTestTracker(t, &fakeService{failNames: map[string]bool{"bad.bin": true}}, fake)

	tracker.UploadBatch(context.Background(), ref.MustParseConversationID("c1"), []File{
		testFile("good.png", "image/png", "x"),
		testFile("bad.bin", "application/octet-stream", "y"),
	})
	if got := len(tracker.Snapshot()); got != 2 {
		t.Fatalf("entries before prune = %d, want 2", got)
	}

	fake.Advance(DefaultPruneDelay)
	if got := len(tracker.Snapshot()); got != 0 {
		t.Errorf("entries after prune = %d, want 0", got)
	}
	if got := fake.PendingCount(); got != 0 {
		t.Errorf("pending timers after prune = %d, want 0", got)
	}
}

func TestProgressDuringUpload(t *testing.T) {
	halfway := make(chan struct{})
	resume := make(chan struct{})
	service := &fakeService{
		onUpload: func(name string, content io.Reader) {
			buffer := make([]byte, 50)
			if _, err := io.ReadFull(content, buffer); err != nil {
				t.Errorf("reading first half: %v", err)
			}
			halfway <- struct{}{}
			<-resume
			io.ReadAll(content)
		},
	}
	tracker := newTestTracker(t, service, clock.Fake(time.Now()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		tracker.UploadBatch(context.Background(), ref.MustParseConversationID("c1"), []File{
			testFile("big.bin", "application/octet-stream", strings.Repeat("z", 100)),
		})
	}()

	<-halfway
	snapshot := tracker.Snapshot()
	if len(snapshot) != 1 || snapshot[0].State != StateUploading || snapshot[0].Percent != 50 {
		t.Errorf("mid-upload snapshot = %+v, want uploading at 50%%", snapshot)
	}
	close(resume)
	<-done

	snapshot = tracker.Snapshot()
	if len(snapshot) != 1 || snapshot[0].Percent != 100 || snapshot[0].State != StateCompleted {
		t.Errorf("final snapshot = %+v, want completed at 100%%", snapshot)
	}
}

func TestEmptyBatch(t *testing.T) {
	tracker := newTestTracker(t, &fakeService{}, clock.Fake(time.Now()))
	attachments, err := tracker.UploadBatch(context.Background(), ref.MustParseConversationID("c1"), nil)
	if err != nil || attachments != nil {
		t.Errorf("empty batch: attachments=%v err=%v, want nil/nil", attachments, err)
	}
}
