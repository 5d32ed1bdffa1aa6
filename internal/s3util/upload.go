// Package s3util publishes run artifacts to S3 and hands out presigned
// download URLs.
package s3util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// DefaultURLExpiry is the lifetime of presigned GET URLs.
const DefaultURLExpiry = time.Hour

type putAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Artifact is one local file to publish.
type Artifact struct {
	Name        string // logical name, e.g. "video"
	Path        string
	ContentType string
	// Optional artifacts are skipped when the file does not exist.
	Optional bool
}

// Publisher uploads session files to a bucket under "<sessionId>/".
type Publisher struct {
	client  putAPI
	presign presignAPI
	bucket  string
	expiry  time.Duration
}

// NewPublisher creates a Publisher for bucket. expiry <= 0 uses DefaultURLExpiry.
func NewPublisher(client *s3.Client, bucket string, expiry time.Duration) *Publisher {
	return newPublisher(client, s3.NewPresignClient(client), bucket, expiry)
}

func newPublisher(client putAPI, presign presignAPI, bucket string, expiry time.Duration) *Publisher {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &Publisher{client: client, presign: presign, bucket: bucket, expiry: expiry}
}

// Bucket returns the target bucket name.
func (p *Publisher) Bucket() string { return p.bucket }

// ObjectKey returns the key for a file name within a session.
func ObjectKey(sessionID, name string) string {
	return sessionID + "/" + name
}

// Publish uploads every artifact and returns the object key per artifact
// name. A missing required file or a failed upload aborts the publish.
func (p *Publisher) Publish(ctx context.Context, sessionID string, artifacts []Artifact) (map[string]string, error) {
	keys := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		key := ObjectKey(sessionID, filepath.Base(a.Path))
		if err := p.UploadFile(ctx, key, a.Path, a.ContentType); err != nil {
			if a.Optional && errors.Is(err, os.ErrNotExist) {
				log.Debug().Str("artifact", a.Name).Msg("Optional artifact not present, skipping upload")
				continue
			}
			return keys, fmt.Errorf("publish %s: %w", a.Name, err)
		}
		keys[a.Name] = key
	}
	log.Info().
		Str("sessionId", sessionID).
		Str("bucket", p.bucket).
		Int("artifacts", len(keys)).
		Msg("Run artifacts published to S3")
	return keys, nil
}

// UploadFile uploads a local file with the project tag.
func (p *Publisher) UploadFile(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	size := info.Size()
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &p.bucket,
		Key:           &key,
		Body:          f,
		ContentType:   &contentType,
		ContentLength: &size,
		Tagging:       ProjectTagging(),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}

	log.Debug().Str("key", key).Int64("size_bytes", size).Msg("Uploaded to S3")
	return nil
}

// PresignAll returns a presigned GET URL for every key.
func (p *Publisher) PresignAll(ctx context.Context, keys map[string]string) (map[string]string, error) {
	urls := make(map[string]string, len(keys))
	for name, key := range keys {
		url, err := GeneratePresignedURL(ctx, p.presign, p.bucket, key, p.expiry)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", name, err)
		}
		urls[name] = url
	}
	return urls, nil
}

// GeneratePresignedURL creates a pre-signed GET URL for an S3 object.
func GeneratePresignedURL(ctx context.Context, presignClient presignAPI, bucket, key string, expiry time.Duration) (string, error) {
	result, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}
