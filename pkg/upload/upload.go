// Package upload syncs closed session artifacts to S3 at shutdown. Files
// are gzipped in memory and written under a date-partitioned key layout so
// downstream analysis can prune by day.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/offlinefirst/keytrace/pkg/catalog"
)

// PutObjectAPI is the S3 surface the uploader needs; the real client and
// test fakes both satisfy it.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures an uploader.
type Options struct {
	Bucket  string
	Prefix  string
	Region  string
	Retries int
	// Timeout bounds each individual put attempt.
	Timeout time.Duration
	// Client overrides the AWS client, mainly for tests.
	Client PutObjectAPI
	Logger zerolog.Logger
}

// Uploader pushes session files to remote storage.
type Uploader struct {
	bucket  string
	prefix  string
	retries int
	timeout time.Duration
	client  PutObjectAPI
	logger  zerolog.Logger
}

// New validates options and constructs an uploader, building a real S3
// client when none is injected. SDK-level retries are disabled; the
// uploader owns the retry loop.
func New(ctx context.Context, opts Options) (*Uploader, error) {
	if opts.Bucket == "" {
		return nil, errors.New("upload bucket must not be empty")
	}
	if opts.Retries <= 0 {
		return nil, errors.New("upload retries must be positive")
	}
	if opts.Timeout <= 0 {
		return nil, errors.New("upload timeout must be positive")
	}

	client := opts.Client
	if client == nil {
		awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx, awsCfgLib.WithRegion(opts.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.RetryMaxAttempts = 0
		})
	}

	return &Uploader{
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
		retries: opts.Retries,
		timeout: opts.Timeout,
		client:  client,
		logger:  opts.Logger,
	}, nil
}

// Sync uploads every pending session and invokes mark for each one that
// fully succeeds. A failed session is logged and left pending for the next
// shutdown; later sessions still get their chance.
func (u *Uploader) Sync(ctx context.Context, pending []catalog.Entry, mark func(sessionID string, at time.Time) error) error {
	var lastErr error
	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := u.SyncSession(ctx, entry); err != nil {
			u.logger.Error().Err(err).Str("session_id", entry.SessionID).Msg("session upload failed, left pending")
			lastErr = err
			continue
		}
		if mark != nil {
			if err := mark(entry.SessionID, time.Now()); err != nil {
				u.logger.Error().Err(err).Str("session_id", entry.SessionID).Msg("uploaded session could not be marked")
				lastErr = err
			}
		}
	}
	return lastErr
}

// SyncSession uploads every file in one session directory.
func (u *Uploader) SyncSession(ctx context.Context, entry catalog.Entry) error {
	files, err := os.ReadDir(entry.Dir)
	if err != nil {
		return fmt.Errorf("read session directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		path := filepath.Join(entry.Dir, file.Name())
		body, err := compressFile(path)
		if err != nil {
			return err
		}
		key := u.objectKey(entry, file.Name())
		if err := u.putWithRetry(ctx, key, body); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		u.logger.Debug().Str("key", key).Int("bytes", len(body)).Msg("object uploaded")
	}

	u.logger.Info().Str("session_id", entry.SessionID).Msg("session synced")
	return nil
}

// objectKey builds <prefix>/dt=<date>/<session_id>/<file>.gz.
func (u *Uploader) objectKey(entry catalog.Entry, name string) string {
	day := entry.Start.UTC().Format("2006-01-02")
	key := fmt.Sprintf("dt=%s/%s/%s.gz", day, entry.SessionID, name)
	if u.prefix != "" {
		key = u.prefix + "/" + key
	}
	return key
}

func compressFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("compress %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// putWithRetry performs up to retries put attempts with exponential
// backoff, capped at 2s. The body reader is rebuilt per attempt.
func (u *Uploader) putWithRetry(ctx context.Context, key string, body []byte) error {
	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= u.retries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := u.putObject(ctx, key, body); err == nil {
			return nil
		} else {
			lastErr = err
			u.logger.Warn().Err(err).Str("key", key).Int("attempt", attempt).Msg("put attempt failed")
		}

		if attempt == u.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}
	return lastErr
}

func (u *Uploader) putObject(ctx context.Context, key string, body []byte) error {
	attemptCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	_, err := u.client.PutObject(attemptCtx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	return err
}
