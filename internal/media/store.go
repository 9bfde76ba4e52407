package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"vienna-backend/internal/config"
	"vienna-backend/internal/logging"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ImageStore saves an encoded image under name and returns its public URL.
type ImageStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// LocalStore writes images below Dir; the HTTP server serves Dir at BaseURL.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func (s LocalStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	full := filepath.Join(s.Dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + name, nil
}

// GCSStore uploads images to a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore prefers explicit credentials JSON and otherwise uses ADC.
func NewGCSStore(ctx context.Context, bucket, credentialsJSON string) (*GCSStore, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", bucket, err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	wc := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return "https://storage.googleapis.com/" + s.bucket + "/" + name, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func validName(name string) error {
	clean := path.Clean(name)
	if name == "" || clean != name || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "..") {
		return errors.New("invalid image name")
	}
	return nil
}

// NewStore picks Cloud Storage when a bucket is configured, else local disk.
func NewStore(ctx context.Context, cfg *config.Config) (ImageStore, error) {
	if cfg.GCSBucket == "" {
		logging.GetLogger().Infof("item images are stored locally in %s", cfg.ImageDir)
		return LocalStore{Dir: cfg.ImageDir, BaseURL: cfg.ImageBaseURL}, nil
	}
	return NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
}
