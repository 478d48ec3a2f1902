package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/postpilot/dispatch/internal/platform"
)

const (
	tiktokVideoInitURL   = "https://open.tiktokapis.com/v2/post/publish/video/init/"
	tiktokContentInitURL = "https://open.tiktokapis.com/v2/post/publish/content/init/"
)

type tiktokAPI struct {
	client Doer
}

type tiktokPostInfo struct {
	Title        string `json:"title"`
	PrivacyLevel string `json:"privacy_level"`
}

type tiktokSourceInfo struct {
	Source    string   `json:"source"`
	VideoURL  string   `json:"video_url,omitempty"`
	PhotoURLs []string `json:"photo_images,omitempty"`
}

type tiktokUploadRequest struct {
	PostInfo   tiktokPostInfo   `json:"post_info"`
	SourceInfo tiktokSourceInfo `json:"source_info"`
	PostMode   string           `json:"post_mode,omitempty"`
	MediaType  string           `json:"media_type,omitempty"`
}

type tiktokUploadResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *tiktokAPI) platform() platform.Platform { return platform.TikTok }

// publishOnce initiates a direct post with the media pulled from the
// presigned URL.
func (a *tiktokAPI) publishOnce(ctx context.Context, item PublishItem, token *oauth2.Token, _ string) (string, error) {
	url := tiktokVideoInitURL
	req := tiktokUploadRequest{
		PostInfo:   tiktokPostInfo{Title: item.Body, PrivacyLevel: "PUBLIC_TO_EVERYONE"},
		SourceInfo: tiktokSourceInfo{Source: "PULL_FROM_URL", VideoURL: item.MediaURL},
	}
	if item.MediaKind == "image" {
		url = tiktokContentInitURL
		req.SourceInfo = tiktokSourceInfo{Source: "PULL_FROM_URL", PhotoURLs: []string{item.MediaURL}}
		req.PostMode = "DIRECT_POST"
		req.MediaType = "PHOTO"
	}

	var resp tiktokUploadResponse
	if err := doJSON(ctx, a.client, http.MethodPost, url, bearer(token), req, &resp); err != nil {
		return "", err
	}
	if resp.Data.PublishID == "" {
		return "", fmt.Errorf("tiktok rejected upload: %s", resp.Error.Message)
	}
	return resp.Data.PublishID, nil
}

func (a *tiktokAPI) fetchMetrics(ctx context.Context, token *oauth2.Token, _ string, since time.Time) ([]MetricSample, error) {
	// Video analytics need the research API scope; not part of the publish
	// credential.
	return nil, nil
}
