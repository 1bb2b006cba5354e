// Package storage uploads chat attachments and avatars to S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/logger"
	"github.com/realaloky/Fast-chat-app/internal/utils"
)

type S3Config struct {
	Region   string
	Bucket   string
	Endpoint string
	// PublicBaseURL replaces the AWS virtual host URL, e.g. a CDN or MinIO address.
	PublicBaseURL string
}

type S3Store struct {
	uploader *manager.Uploader
	cfg      S3Config
	log      *zap.Logger
}

func NewS3Store(ctx context.Context, cfg S3Config, log *zap.Logger) (*S3Store, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{uploader: manager.NewUploader(client), cfg: cfg, log: logger.OrNop(log)}, nil
}

// Upload stores data under key and returns its public URL. Images also get a
// <key>_thumb.jpg thumbnail; a thumbnail failure does not fail the upload.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := s.put(ctx, key, contentType, data); err != nil {
		return "", err
	}
	if utils.IsImage(contentType) {
		if thumb, err := Thumbnail(data); err == nil {
			if err := s.put(ctx, ThumbnailKey(key), "image/jpeg", thumb); err != nil {
				s.log.Warn("thumbnail upload failed", zap.String("key", key), zap.Error(err))
			}
		} else {
			s.log.Debug("no thumbnail", zap.String("key", key), zap.Error(err))
		}
	}
	return PublicURL(s.cfg, key), nil
}

func (s *S3Store) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	s.log.Debug("object stored", zap.String("key", key), zap.String("size", humanize.Bytes(uint64(len(data)))))
	return nil
}

// PublicURL is the address under which key is served.
func PublicURL(cfg S3Config, key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/") + "/" + escaped
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.Bucket, cfg.Region, escaped)
}

func ThumbnailKey(key string) string { return key + "_thumb.jpg" }

// AvatarKey is the object key of a user's avatar. Avatars are always stored as JPEG.
func AvatarKey(userID string) string { return "avatars/" + userID + ".jpg" }
