package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/credentio/bulkissue/internal/pkg/batch"
	"github.com/credentio/bulkissue/internal/pkg/limiter"
	"github.com/credentio/bulkissue/internal/pkg/messages"
	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/credentio/bulkissue/internal/pkg/status"
	"github.com/credentio/bulkissue/internal/pkg/utils"

	amessages "github.com/airenas/async-api/pkg/messages"
)

// Sender enqueues messages for processing
type Sender interface {
	SendMessage(ctx context.Context, msg amessages.Message, queue string) error
}

// DB updates submission status on systemic dispatch failure
type DB interface {
	UpdateFileUploadStatus(ctx context.Context, id, status string) error
}

// RunSaver persists dispatch run counters before any job goes out
type RunSaver interface {
	InsertRun(ctx context.Context, run *persistence.DispatchRun) error
}

// Opts for one dispatch call
type Opts struct {
	FileUploadID string
	OrgID        string
	ClientID     string
	TemplateID   string
	Logo         string
	IsRetry      bool
	// JobID is generated when empty
	JobID string
}

// Service fans submission rows out to the issue queue.
// Fire and forget: caller gets no error, failures flip the submission
// to interrupted and raise an error event
type Service struct {
	sender     Sender
	db         DB
	runs       RunSaver
	batchSize  int
	batchDelay time.Duration
	limiter    *limiter.Limiter
}

// NewService creates dispatcher
func NewService(sender Sender, db DB, runs RunSaver, batchSize int, batchDelay time.Duration, limit int64) (*Service, error) {
	if sender == nil {
		return nil, errors.New("no sender")
	}
	if db == nil {
		return nil, errors.New("no DB")
	}
	if runs == nil {
		return nil, errors.New("no run saver")
	}
	if batchSize < 1 {
		return nil, errors.Errorf("wrong batchSize %d", batchSize)
	}
	if limit < 1 {
		return nil, errors.Errorf("wrong concurrency %d", limit)
	}
	return &Service{sender: sender, db: db, runs: runs, batchSize: batchSize,
		batchDelay: batchDelay, limiter: limiter.New(limit)}, nil
}

// Dispatch enqueues one issue job per row
func (s *Service) Dispatch(ctx context.Context, rows []*persistence.FileData, opts Opts) {
	defer goapp.Estimate("dispatch")()

	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	goapp.Log.Info().Str("ID", opts.FileUploadID).Str("jobID", jobID).Int("rows", len(rows)).
		Bool("retry", opts.IsRetry).Msg("dispatching")

	run := &persistence.DispatchRun{JobID: jobID, FileUploadID: opts.FileUploadID,
		TotalJobs: len(rows), IsRetry: opts.IsRetry, ClientID: utils.ToSQLStr(opts.ClientID),
		Created: time.Now(), Updated: time.Now()}
	if err := s.runs.InsertRun(ctx, run); err != nil {
		s.fail(ctx, opts, fmt.Errorf("can't save run: %w", err))
		return
	}

	for i, b := range batch.Split(rows, s.batchSize) {
		if i > 0 {
			select {
			case <-time.After(s.batchDelay):
			case <-ctx.Done():
				s.fail(ctx, opts, ctx.Err())
				return
			}
		}
		if err := s.sendBatch(ctx, b, jobID, len(rows), opts); err != nil {
			s.fail(ctx, opts, err)
			return
		}
		goapp.Log.Info().Str("jobID", jobID).Int("batch", i).Int("size", len(b)).Msg("batch sent")
	}
}

func (s *Service) sendBatch(ctx context.Context, items []*persistence.FileData, jobID string, total int, opts Opts) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, item := range items {
		item := item
		g.Go(func() error {
			return s.limiter.Run(gCtx, func() error {
				msg := &messages.IssueMessage{
					QueueMessage: amessages.QueueMessage{ID: item.ID},
					JobID:        jobID,
					FileUploadID: opts.FileUploadID,
					TotalJobs:    total,
					IsRetry:      opts.IsRetry,
					ClientID:     opts.ClientID,
					OrgID:        opts.OrgID,
					ReferenceID:  item.ReferenceID,
					Payload:      item.Payload,
					SchemaID:     utils.FromSQLStr(item.SchemaID),
					CredDefID:    utils.FromSQLStr(item.CredDefID),
					TemplateID:   opts.TemplateID,
					Logo:         opts.Logo,
				}
				if err := s.sender.SendMessage(gCtx, msg, messages.Issue); err != nil {
					// a lost job stalls the run counter, the stale-run sweep
					// keeps warning about it while the row stays unattempted
					goapp.Log.Error().Err(err).Str("rowID", item.ID).Msg("can't enqueue")
				}
				return nil
			})
		})
	}
	return g.Wait()
}

func (s *Service) fail(ctx context.Context, opts Opts, err error) {
	goapp.Log.Error().Err(err).Str("ID", opts.FileUploadID).Msg("dispatch failed")
	if errU := s.db.UpdateFileUploadStatus(ctx, opts.FileUploadID, status.Interrupted.String()); errU != nil {
		goapp.Log.Error().Err(errU).Str("ID", opts.FileUploadID).Msg("can't update status")
	}
	event := messages.EventError(opts.IsRetry)
	msg := &messages.ProgressMessage{QueueMessage: amessages.QueueMessage{ID: opts.FileUploadID},
		Event: event, FileUploadID: opts.FileUploadID, ClientID: opts.ClientID}
	if errS := s.sender.SendMessage(ctx, msg, messages.Progress); errS != nil {
		goapp.Log.Error().Err(errS).Str("ID", opts.FileUploadID).Msg("can't send error event")
	}
}
