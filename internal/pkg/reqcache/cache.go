package reqcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// ErrNoRecord indicates no cached payload for the request ID
var ErrNoRecord = errors.New("no cached request")

// Options for minio client initialization
type Options struct {
	URL    string
	User   string
	Key    string
	Secure bool
	Bucket string
}

// Cache keeps parsed bulk payload rows in object storage between
// the parse call and the issue call
type Cache struct {
	minioClient *minio.Client
	bucket      string
}

// NewCache creates minio backed request cache, makes sure bucket exists
func NewCache(ctx context.Context, opts Options) (*Cache, error) {
	goapp.Log.Info().Str("url", opts.URL).Str("bucket", opts.Bucket).Msg("connecting to minio")
	if opts.Bucket == "" {
		return nil, fmt.Errorf("no bucket")
	}
	mc, err := minio.New(opts.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.User, opts.Key, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("can't init minio client: %w", err)
	}
	res := &Cache{minioClient: mc, bucket: opts.Bucket}
	if err := res.makeSureBucket(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Cache) makeSureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("can't check bucket: %w", err)
	}
	if exists {
		return nil
	}
	goapp.Log.Info().Str("bucket", c.bucket).Msg("creating bucket")
	if err := c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("can't create bucket: %w", err)
	}
	return nil
}

// Save stores parsed rows for the request ID
func (c *Cache) Save(ctx context.Context, id string, rows []map[string]string) error {
	goapp.Log.Info().Str("ID", id).Int("rows", len(rows)).Msg("saving request data")
	bts, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("can't marshal rows: %w", err)
	}
	_, err = c.minioClient.PutObject(ctx, c.bucket, objectName(id), bytes.NewReader(bts),
		int64(len(bts)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("can't save %s: %w", id, err)
	}
	return nil
}

// Load returns rows saved for the request ID, ErrNoRecord if none
func (c *Cache) Load(ctx context.Context, id string) ([]map[string]string, error) {
	obj, err := c.minioClient.GetObject(ctx, c.bucket, objectName(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("can't load %s: %w", id, err)
	}
	defer obj.Close()
	bts, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("can't load %s: %w", id, err)
	}
	var res []map[string]string
	if err := json.Unmarshal(bts, &res); err != nil {
		return nil, fmt.Errorf("can't unmarshal %s: %w", id, err)
	}
	return res, nil
}

// Delete drops rows for the request ID, no error if missing
func (c *Cache) Delete(ctx context.Context, id string) error {
	goapp.Log.Info().Str("ID", id).Msg("dropping request data")
	err := c.minioClient.RemoveObject(ctx, c.bucket, objectName(id), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("can't delete %s: %w", id, err)
	}
	return nil
}

func objectName(id string) string {
	return id + ".json"
}

func isNotFound(err error) bool {
	var errTest minio.ErrorResponse
	return errors.As(err, &errTest) && errTest.StatusCode == http.StatusNotFound
}
