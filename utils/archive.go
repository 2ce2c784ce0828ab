package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"boardgame-recommender/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
)

// ErrArchiveDisabled is returned when no bucket is configured.
var ErrArchiveDisabled = errors.New("share archive disabled")

// ArchiveConfig points at an S3-compatible bucket (Cloudflare R2 by default).
type ArchiveConfig struct {
	AccountID string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
}

// ObjectPutter is the part of the S3 API the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ShareArchive writes shares about to be deleted as JSON objects.
type ShareArchive struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewShareArchive builds the R2/S3 client. With no bucket configured the
// archive is a no-op that reports ErrArchiveDisabled.
func NewShareArchive(ctx context.Context, cfg ArchiveConfig) (*ShareArchive, error) {
	if cfg.Bucket == "" {
		return &ShareArchive{}, nil
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return NewShareArchiveWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewShareArchiveWithClient(client ObjectPutter, bucket, prefix string) *ShareArchive {
	if prefix == "" {
		prefix = "shares"
	}
	return &ShareArchive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), now: time.Now}
}

// Archive uploads the batch as one JSON array object keyed by date.
func (a *ShareArchive) Archive(ctx context.Context, shares []models.SharedRecommendationSet) error {
	if a == nil || a.client == nil {
		return ErrArchiveDisabled
	}
	if len(shares) == 0 {
		return nil
	}

	body, err := json.Marshal(shares)
	if err != nil {
		return fmt.Errorf("failed to encode shares: %w", err)
	}

	now := a.now().UTC()
	key := fmt.Sprintf("%s/%s/%d.json", a.prefix, now.Format("2006/01/02"), now.UnixNano())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}
