// Package archive snapshots a channel's full message history plus its
// attachments to local storage: one JSON artifact describing every
// message, and one file per successfully downloaded attachment.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neural022/discord-bot-application/internal/discord"
	"github.com/neural022/discord-bot-application/internal/fsstore"
)

var ErrChannelIDRequired = errors.New("archive: channel id is required")

const (
	defaultSaveDir         = "download"
	defaultMaxConcurrency  = 4
	defaultDownloadTimeout = 60 * time.Second
)

// Source is the slice of the platform API the pipeline reads from.
// *discord.Client satisfies it. The underlying HTTP session is shared
// by all concurrent downloads and is safe for that use.
type Source interface {
	Channel(ctx context.Context, channelID discord.Snowflake) (*discord.Channel, error)
	ChannelHistory(ctx context.Context, channelID discord.Snowflake) ([]discord.Message, error)
	DownloadTo(ctx context.Context, url, dstPath string, maxBytes int64) error
}

// AttachmentRecord describes one attachment of an archived message.
// The url/save_as field names are consumed by downstream tooling; do
// not rename them.
type AttachmentRecord struct {
	URL            string `json:"url"`
	SaveAs         string `json:"save_as"`
	DownloadFailed bool   `json:"download_failed,omitempty"`
}

// Record is one archived message in the artifact.
type Record struct {
	ID          discord.Snowflake  `json:"id"`
	Author      string             `json:"author"`
	Timestamp   string             `json:"timestamp"`
	Content     string             `json:"content"`
	Attachments []AttachmentRecord `json:"attachments"`
}

type Options struct {
	Source          Source
	Logger          *slog.Logger
	SaveDir         string
	MaxConcurrency  int
	DownloadTimeout time.Duration
	MaxBytes        int64
}

type Pipeline struct {
	source          Source
	logger          *slog.Logger
	saveDir         string
	maxConcurrency  int
	downloadTimeout time.Duration
	maxBytes        int64
}

func New(opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("archive: source is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	saveDir := opts.SaveDir
	if saveDir == "" {
		saveDir = defaultSaveDir
	}
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	downloadTimeout := opts.DownloadTimeout
	if downloadTimeout <= 0 {
		downloadTimeout = defaultDownloadTimeout
	}
	return &Pipeline{
		source:          opts.Source,
		logger:          logger,
		saveDir:         saveDir,
		maxConcurrency:  maxConcurrency,
		downloadTimeout: downloadTimeout,
		maxBytes:        opts.MaxBytes,
	}, nil
}

// savePathFor derives the attachment's destination from the owning
// message id and the original filename, so two messages sharing a
// filename never collide and a rerun overwrites rather than
// duplicates.
func (p *Pipeline) savePathFor(messageID discord.Snowflake, filename string) string {
	return filepath.Join(p.saveDir, fmt.Sprintf("%s_%s", messageID, filename))
}

type downloadJob struct {
	url    string
	path   string
	record *AttachmentRecord
}

// Archive snapshots the channel into destFile. Precondition and
// filesystem failures propagate; individual download failures are
// logged, recorded on the attachment, and never abort the run.
func (p *Pipeline) Archive(ctx context.Context, channelID discord.Snowflake, destFile string) error {
	if channelID == 0 {
		return ErrChannelIDRequired
	}
	runID := uuid.NewString()

	channel, err := p.source.Channel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("resolve channel %s: %w", channelID, err)
	}

	p.logger.Info("archive_start", "run_id", runID, "channel_id", channel.ID.String(), "dest", destFile)

	history, err := p.source.ChannelHistory(ctx, channel.ID)
	if err != nil {
		return fmt.Errorf("fetch channel history: %w", err)
	}
	p.logger.Info("archive_history_fetched", "run_id", runID, "messages", len(history))

	records := make([]Record, 0, len(history))
	var jobs []downloadJob
	for _, msg := range history {
		rec := Record{
			ID:          msg.ID,
			Author:      msg.Author.Display(),
			Timestamp:   msg.Timestamp,
			Content:     msg.Content,
			Attachments: make([]AttachmentRecord, 0, len(msg.Attachments)),
		}
		for _, att := range msg.Attachments {
			rec.Attachments = append(rec.Attachments, AttachmentRecord{
				URL:    att.URL,
				SaveAs: p.savePathFor(msg.ID, att.Filename),
			})
		}
		records = append(records, rec)
	}
	// Records are settled before any download starts; each job points
	// at its own AttachmentRecord, so the workers never contend.
	for i := range records {
		for j := range records[i].Attachments {
			att := &records[i].Attachments[j]
			jobs = append(jobs, downloadJob{url: att.URL, path: att.SaveAs, record: att})
		}
	}

	if len(jobs) > 0 {
		if err := fsstore.EnsureDir(p.saveDir, 0); err != nil {
			return err
		}
		p.runDownloads(ctx, runID, jobs)
	}

	if err := fsstore.WriteJSONAtomic(destFile, records, fsstore.FileOptions{}); err != nil {
		return err
	}

	failed := 0
	for i := range records {
		for j := range records[i].Attachments {
			if records[i].Attachments[j].DownloadFailed {
				failed++
			}
		}
	}
	p.logger.Info("archive_done", "run_id", runID,
		"messages", len(records), "attachments", len(jobs), "failed_downloads", failed, "dest", destFile)
	return nil
}

// runDownloads fans the jobs out over a bounded number of in-flight
// downloads and blocks until every one has finished, success or not.
func (p *Pipeline) runDownloads(ctx context.Context, runID string, jobs []downloadJob) {
	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup
	for _, job := range jobs {
		job := job
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			dlCtx, cancel := context.WithTimeout(ctx, p.downloadTimeout)
			defer cancel()
			if err := p.source.DownloadTo(dlCtx, job.url, job.path, p.maxBytes); err != nil {
				job.record.DownloadFailed = true
				p.logger.Error("archive_download_failed", "run_id", runID, "url", job.url, "error", err.Error())
				return
			}
			p.logger.Debug("archive_download_ok", "run_id", runID, "path", job.path)
		}()
	}
	wg.Wait()
}
