package store

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
	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/credentio/bulkissue/internal/pkg/utils"
)

// DB saves file data rows
type DB interface {
	InsertFileData(ctx context.Context, item *persistence.FileData) error
}

// Meta carries submission wide values for stored rows
type Meta struct {
	FileUploadID string
	SchemaID     string
	CredDefID    string
}

// Service persists parsed payload rows before dispatch.
// Batches go one after another, rows inside a batch go in parallel
// through the limiter. One failed row fails the whole store call
type Service struct {
	db        DB
	batchSize int
	limiter   *limiter.Limiter
}

// NewService creates row store
func NewService(db DB, batchSize int, limit int64) (*Service, error) {
	if db == nil {
		return nil, errors.New("no DB")
	}
	if batchSize < 1 {
		return nil, errors.Errorf("wrong batchSize %d", batchSize)
	}
	if limit < 1 {
		return nil, errors.Errorf("wrong concurrency %d", limit)
	}
	return &Service{db: db, batchSize: batchSize, limiter: limiter.New(limit)}, nil
}

// Store saves all rows, returns saved items in input order
func (s *Service) Store(ctx context.Context, rows []map[string]string, meta Meta) ([]*persistence.FileData, error) {
	defer goapp.Estimate("store rows")()
	goapp.Log.Info().Str("ID", meta.FileUploadID).Int("rows", len(rows)).Msg("storing rows")

	res := make([]*persistence.FileData, 0, len(rows))
	for _, r := range rows {
		res = append(res, &persistence.FileData{
			ID:           uuid.NewString(),
			FileUploadID: meta.FileUploadID,
			ReferenceID:  referenceID(r),
			Payload:      r,
			SchemaID:     utils.ToSQLStr(meta.SchemaID),
			CredDefID:    utils.ToSQLStr(meta.CredDefID),
			Created:      time.Now(),
		})
	}

	for i, b := range batch.Split(res, s.batchSize) {
		if err := s.storeBatch(ctx, b); err != nil {
			return nil, fmt.Errorf("can't store batch %d: %w", i, err)
		}
	}
	return res, nil
}

func (s *Service) storeBatch(ctx context.Context, items []*persistence.FileData) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, item := range items {
		item := item
		g.Go(func() error {
			return s.limiter.Run(gCtx, func() error {
				return s.db.InsertFileData(gCtx, item)
			})
		})
	}
	return g.Wait()
}

func referenceID(payload map[string]string) string {
	if v := payload["referenceId"]; v != "" {
		return v
	}
	return payload["email"]
}
