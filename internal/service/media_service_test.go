package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() R2Settings {
	return R2Settings{
		AccountID:  "acct",
		AccessKey:  "ak",
		SecretKey:  "sk",
		BucketName: "media",
	}
}

func TestResolvePresignsStoredAsset(t *testing.T) {
	ctx := context.Background()
	svc, err := NewMediaService(ctx, testSettings())
	require.NoError(t, err)

	// Presigning signs locally; no request leaves the process.
	url, kind, err := svc.Resolve(ctx, "abc123.mp4")
	require.NoError(t, err)
	assert.Equal(t, "video", kind)
	assert.Contains(t, url, "media")
	assert.Contains(t, url, "abc123.mp4")
	assert.Contains(t, url, "X-Amz-Signature")
}

func TestResolveRejectsUnknownExtension(t *testing.T) {
	ctx := context.Background()
	svc, err := NewMediaService(ctx, testSettings())
	require.NoError(t, err)

	_, _, err = svc.Resolve(ctx, "abc123.exe")
	assert.Error(t, err)

	_, _, err = svc.Resolve(ctx, "no-extension")
	assert.Error(t, err)
}

func TestUploadRejectsUnknownBytes(t *testing.T) {
	ctx := context.Background()
	svc, err := NewMediaService(ctx, testSettings())
	require.NoError(t, err)

	_, err = svc.Upload(ctx, []byte(strings.Repeat("not a media file", 10)))
	assert.Error(t, err)
}

func TestMediaKind(t *testing.T) {
	assert.Equal(t, "video", mediaKind("mp4"))
	assert.Equal(t, "video", mediaKind("mov"))
	assert.Equal(t, "image", mediaKind("png"))
	assert.Equal(t, "image", mediaKind("jpeg"))
	assert.Empty(t, mediaKind("exe"))
	assert.Empty(t, mediaKind(""))
}
