// Package service holds application services that sit between the HTTP
// surface and the dispatch pipeline.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// presignTTL bounds how long a platform has to pull the media. Platforms
// fetch immediately after the publish call, so a short window is enough.
const presignTTL = 15 * time.Minute

// R2Settings configures the Cloudflare R2 bucket holding media assets.
type R2Settings struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

// MediaService stores media assets and resolves stored references into
// short-lived pull URLs for the platform transports.
type MediaService interface {
	Upload(ctx context.Context, data []byte) (string, error)
	Resolve(ctx context.Context, mediaRef string) (url, kind string, err error)
}

type mediaService struct {
	settings R2Settings
	client   *s3.Client
}

func NewMediaService(ctx context.Context, settings R2Settings) (MediaService, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(settings.AccessKey, settings.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", settings.AccountID))
	})
	return &mediaService{settings: settings, client: client}, nil
}

// Upload sniffs the file type, rejects anything the platforms cannot ingest
// and stores the asset under a generated key. The returned key is the
// media_ref stored on the content.
func (s *mediaService) Upload(ctx context.Context, data []byte) (string, error) {
	ft, err := filetype.Match(data)
	if err != nil || ft == types.Unknown {
		return "", fmt.Errorf("unsupported file type: %w", err)
	}
	if mediaKind(ft.Extension) == "" {
		return "", fmt.Errorf("file type %s is not allowed", ft.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := id + "." + ft.Extension

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.settings.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ft.MIME.Value),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return key, nil
}

// Resolve presigns a GET for the stored asset. The media kind is derived from
// the key's extension written at upload time.
func (s *mediaService) Resolve(ctx context.Context, mediaRef string) (string, string, error) {
	kind := mediaKind(strings.TrimPrefix(path.Ext(mediaRef), "."))
	if kind == "" {
		return "", "", fmt.Errorf("media ref %q has no recognized extension", mediaRef)
	}

	presigner := s3.NewPresignClient(s.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.settings.BucketName),
		Key:    aws.String(mediaRef),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		slog.Info(err.Error())
		return "", "", err
	}
	return req.URL, kind, nil
}

// mediaKind maps a file extension to the transport media kind. Empty means
// the type is not publishable.
func mediaKind(ext string) string {
	switch ext {
	case "mp4", "mov":
		return "video"
	case "jpg", "jpeg", "png", "gif":
		return "image"
	}
	return ""
}
