package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/neural022/discord-bot-application/internal/discord"
)

type fakeSource struct {
	channelErr error
	historyErr error
	history    []discord.Message

	// failURL marks download URLs that return an error.
	failURL func(url string) bool

	mu        sync.Mutex
	downloads []string
}

func (f *fakeSource) Channel(ctx context.Context, channelID discord.Snowflake) (*discord.Channel, error) {
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	return &discord.Channel{ID: channelID}, nil
}

func (f *fakeSource) ChannelHistory(ctx context.Context, channelID discord.Snowflake) ([]discord.Message, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeSource) DownloadTo(ctx context.Context, url, dstPath string, maxBytes int64) error {
	f.mu.Lock()
	f.downloads = append(f.downloads, url)
	f.mu.Unlock()
	if f.failURL != nil && f.failURL(url) {
		return errors.New("simulated transport failure")
	}
	return os.WriteFile(dstPath, []byte("bytes:"+url), 0o600)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestPipeline(t *testing.T, source Source, saveDir string) *Pipeline {
	t.Helper()
	p, err := New(Options{
		Source:         source,
		Logger:         quietLogger(),
		SaveDir:        saveDir,
		MaxConcurrency: 3,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func syntheticHistory(n int) []discord.Message {
	msgs := make([]discord.Message, 0, n)
	for i := 1; i <= n; i++ {
		msg := discord.Message{
			ID:        discord.Snowflake(i),
			Author:    discord.User{Username: fmt.Sprintf("user%d", i), Discriminator: "0"},
			Timestamp: fmt.Sprintf("2023-09-0%dT00:00:00+00:00", i%9+1),
			Content:   fmt.Sprintf("message %d", i),
		}
		msg.Attachments = []discord.Attachment{{
			ID:       discord.Snowflake(1000 + i),
			Filename: "pic.png",
			URL:      fmt.Sprintf("https://cdn.example/%d/pic.png", i),
		}}
		msgs = append(msgs, msg)
	}
	return msgs
}

func readArtifact(t *testing.T, path string) []Record {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("Unmarshal artifact: %v", err)
	}
	return records
}

func TestArchiveRequiresChannelID(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &fakeSource{}, t.TempDir())
	err := p.Archive(context.Background(), 0, filepath.Join(t.TempDir(), "dump.json"))
	if !errors.Is(err, ErrChannelIDRequired) {
		t.Fatalf("Archive() error = %v, want ErrChannelIDRequired", err)
	}
}

func TestArchiveUnresolvedChannelFailsLoudly(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &fakeSource{channelErr: errors.New("no such channel")}, t.TempDir())
	err := p.Archive(context.Background(), 7, filepath.Join(t.TempDir(), "dump.json"))
	if err == nil {
		t.Fatalf("Archive() error = nil, want channel resolution failure")
	}
}

func TestArchivePreservesChronologicalOrder(t *testing.T) {
	t.Parallel()

	const n = 12
	source := &fakeSource{history: syntheticHistory(n)}
	dir := t.TempDir()
	p := newTestPipeline(t, source, filepath.Join(dir, "download"))
	dest := filepath.Join(dir, "dump.json")

	if err := p.Archive(context.Background(), 7, dest); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	records := readArtifact(t, dest)
	if len(records) != n {
		t.Fatalf("artifact records = %d, want %d", len(records), n)
	}
	for i, rec := range records {
		if rec.ID != discord.Snowflake(i+1) {
			t.Fatalf("records[%d].ID = %d, want %d (oldest first)", i, rec.ID, i+1)
		}
	}
}

func TestArchivePartialDownloadFailureIsolation(t *testing.T) {
	t.Parallel()

	const n = 9
	source := &fakeSource{
		history: syntheticHistory(n),
		failURL: func(url string) bool {
			// Every third message's attachment fails.
			return strings.Contains(url, "/3/") || strings.Contains(url, "/6/") || strings.Contains(url, "/9/")
		},
	}
	dir := t.TempDir()
	saveDir := filepath.Join(dir, "download")
	p := newTestPipeline(t, source, saveDir)
	dest := filepath.Join(dir, "dump.json")

	if err := p.Archive(context.Background(), 7, dest); err != nil {
		t.Fatalf("Archive() error = %v, want nil (per-item failures absorbed)", err)
	}
	records := readArtifact(t, dest)
	if len(records) != n {
		t.Fatalf("artifact records = %d, want all %d despite failures", len(records), n)
	}
	for i, rec := range records {
		id := i + 1
		wantFailed := id%3 == 0
		if len(rec.Attachments) != 1 {
			t.Fatalf("records[%d] attachments = %d, want 1", i, len(rec.Attachments))
		}
		att := rec.Attachments[0]
		if att.DownloadFailed != wantFailed {
			t.Fatalf("records[%d] DownloadFailed = %v, want %v", i, att.DownloadFailed, wantFailed)
		}
		if _, err := os.Stat(att.SaveAs); wantFailed != os.IsNotExist(err) {
			t.Fatalf("records[%d] file presence mismatch: failed=%v staterr=%v", i, wantFailed, err)
		}
	}
	if len(source.downloads) != n {
		t.Fatalf("download attempts = %d, want %d", len(source.downloads), n)
	}
}

func TestArchiveDeterministicPathsNoCollision(t *testing.T) {
	t.Parallel()

	// Two different messages carrying the same filename.
	history := []discord.Message{
		{
			ID:     1,
			Author: discord.User{Username: "a", Discriminator: "0"},
			Attachments: []discord.Attachment{
				{Filename: "same.png", URL: "https://cdn.example/1/same.png"},
			},
		},
		{
			ID:     2,
			Author: discord.User{Username: "b", Discriminator: "0"},
			Attachments: []discord.Attachment{
				{Filename: "same.png", URL: "https://cdn.example/2/same.png"},
			},
		},
	}
	source := &fakeSource{history: history}
	dir := t.TempDir()
	saveDir := filepath.Join(dir, "download")
	p := newTestPipeline(t, source, saveDir)
	dest := filepath.Join(dir, "dump.json")

	if err := p.Archive(context.Background(), 7, dest); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	records := readArtifact(t, dest)
	first := records[0].Attachments[0].SaveAs
	second := records[1].Attachments[0].SaveAs
	if first == second {
		t.Fatalf("save paths collide: %q", first)
	}
	firstBytes, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", first, err)
	}
	secondBytes, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", second, err)
	}
	if string(firstBytes) == string(secondBytes) {
		t.Fatalf("attachment contents overwrote each other")
	}
}

func TestArchiveArtifactFieldNames(t *testing.T) {
	t.Parallel()

	source := &fakeSource{history: syntheticHistory(1)}
	dir := t.TempDir()
	p := newTestPipeline(t, source, filepath.Join(dir, "download"))
	dest := filepath.Join(dir, "dump.json")

	if err := p.Archive(context.Background(), 7, dest); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	raw, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var generic []map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	rec := generic[0]
	for _, field := range []string{"id", "author", "timestamp", "content", "attachments"} {
		if _, ok := rec[field]; !ok {
			t.Fatalf("artifact record missing field %q: %v", field, rec)
		}
	}
	atts, ok := rec["attachments"].([]any)
	if !ok || len(atts) != 1 {
		t.Fatalf("attachments shape = %v", rec["attachments"])
	}
	att := atts[0].(map[string]any)
	for _, field := range []string{"url", "save_as"} {
		if _, ok := att[field]; !ok {
			t.Fatalf("attachment record missing field %q: %v", field, att)
		}
	}
	// id must serialize as a bare number.
	if _, ok := rec["id"].(float64); !ok {
		t.Fatalf("id serialized as %T, want JSON number", rec["id"])
	}
}

func TestArchiveNoAttachmentsWritesEmptyList(t *testing.T) {
	t.Parallel()

	source := &fakeSource{history: []discord.Message{{
		ID:     1,
		Author: discord.User{Username: "a", Discriminator: "0"},
	}}}
	dir := t.TempDir()
	p := newTestPipeline(t, source, filepath.Join(dir, "download"))
	dest := filepath.Join(dir, "dump.json")

	if err := p.Archive(context.Background(), 7, dest); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	records := readArtifact(t, dest)
	if records[0].Attachments == nil || len(records[0].Attachments) != 0 {
		t.Fatalf("Attachments = %v, want empty list", records[0].Attachments)
	}
	if len(source.downloads) != 0 {
		t.Fatalf("downloads = %v, want none", source.downloads)
	}
}
