// Package storage keeps user media in an S3 compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const cacheControl = "max-age=31536000"

type ObjectStore interface {
	// Put stores the object and returns its public URL.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromUrl maps a public URL back to an object key.
	KeyFromUrl(url string) (string, bool)
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyId     string
	SecretAccessKey string
	// Endpoint targets S3 compatible providers such as R2 or MinIO.
	Endpoint   string
	CdnBaseUrl string
}

type S3Store struct {
	client  *s3.Client
	bucket  string
	baseUrl string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	options := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyId != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyId, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
			// most S3 compatible stores reject the default trailing checksums
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseUrl: PublicBaseUrl(cfg),
	}, nil
}

// PublicBaseUrl is the prefix of every URL handed out for the bucket.
func PublicBaseUrl(cfg S3Config) string {
	switch {
	case cfg.CdnBaseUrl != "":
		return strings.TrimSuffix(cfg.CdnBaseUrl, "/")
	case cfg.Endpoint != "":
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String(cacheControl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	log.Debug().Str("key", key).Int64("size", size).Msg("Object stored")
	return s.baseUrl + "/" + key, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) KeyFromUrl(url string) (string, bool) {
	return keyFromUrl(s.baseUrl, url)
}

func keyFromUrl(baseUrl string, url string) (string, bool) {
	key, found := strings.CutPrefix(url, baseUrl+"/")
	if !found || key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
