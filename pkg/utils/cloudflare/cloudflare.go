package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrForeignURL = errors.New("url does not belong to the image store")

type Config struct {
	AccountID     string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	// Endpoint overrides the R2 account endpoint.
	Endpoint string
}

// ImageStore stores contact images and serves them from a public base URL.
type ImageStore interface {
	Upload(ctx context.Context, cfg UploadImageConfig) (UploadResult, error)
	Delete(ctx context.Context, url string) error
	Owns(url string) bool
}

type UploadImageConfig struct {
	Body        io.Reader
	Size        int64
	ContentType string
	Ext         string
	Owner       string
}

type UploadResult struct {
	URL string
	Key string
}

type R2Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

func getS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		o.Region = "auto"
	})
	return client, nil
}

func NewR2Store(ctx context.Context, cfg Config) (*R2Store, error) {
	if cfg.Bucket == "" || cfg.PublicBaseURL == "" {
		return nil, errors.New("r2 bucket and public url are required")
	}
	client, err := getS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &R2Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// ObjectKey builds contacts/<owner>/<uuid><ext>.
func ObjectKey(owner, ext string) string {
	segment := slug.Make(owner)
	if segment == "" {
		segment = "anonymous"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join("contacts", segment, uuid.NewString()+strings.ToLower(ext))
}

func (s *R2Store) Upload(ctx context.Context, cfg UploadImageConfig) (UploadResult, error) {
	key := ObjectKey(cfg.Owner, cfg.Ext)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        cfg.Body,
		ContentType: aws.String(cfg.ContentType),
	}
	if cfg.Size > 0 {
		input.ContentLength = aws.Int64(cfg.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return UploadResult{}, fmt.Errorf("could not upload file to R2: %w", err)
	}

	return UploadResult{URL: s.publicBaseURL + "/" + key, Key: key}, nil
}

func (s *R2Store) Delete(ctx context.Context, url string) error {
	key, ok := s.keyFromURL(url)
	if !ok {
		return ErrForeignURL
	}

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if _, err := s.client.DeleteObject(ctx, input); err != nil {
		return fmt.Errorf("could not delete file from R2: %w", err)
	}
	return nil
}

func (s *R2Store) Owns(url string) bool {
	_, ok := s.keyFromURL(url)
	return ok
}

// keyFromURL strips the public base URL, leaving the object key.
func (s *R2Store) keyFromURL(url string) (string, bool) {
	prefix := s.publicBaseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// GetFileNameFromURL returns the last path segment.
func GetFileNameFromURL(url string) string {
	return filepath.Base(url)
}
