package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/postpilot/dispatch/internal/platform"
)

const instagramGraphURL = "https://graph.facebook.com/v19.0"

type instagramAPI struct {
	client Doer
}

type instagramContainerRequest struct {
	ImageURL    string `json:"image_url,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	MediaType   string `json:"media_type,omitempty"`
	Caption     string `json:"caption"`
	AccessToken string `json:"access_token"`
}

type instagramContainerResponse struct {
	ID string `json:"id"`
}

type instagramPublishRequest struct {
	CreationID  string `json:"creation_id"`
	AccessToken string `json:"access_token"`
}

type instagramPublishResponse struct {
	ID string `json:"id"`
}

type instagramInsightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int64 `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

func (a *instagramAPI) platform() platform.Platform { return platform.Instagram }

// publishOnce runs the two-step container flow: create a media container from
// the pull URL, then publish it.
func (a *instagramAPI) publishOnce(ctx context.Context, item PublishItem, token *oauth2.Token, handle string) (string, error) {
	containerReq := instagramContainerRequest{Caption: item.Body, AccessToken: token.AccessToken}
	switch item.MediaKind {
	case "video":
		containerReq.VideoURL = item.MediaURL
		containerReq.MediaType = "REELS"
	default:
		containerReq.ImageURL = item.MediaURL
	}

	var container instagramContainerResponse
	containerURL := fmt.Sprintf("%s/%s/media", instagramGraphURL, handle)
	if err := doJSON(ctx, a.client, http.MethodPost, containerURL, nil, containerReq, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", fmt.Errorf("instagram returned no container id")
	}

	var published instagramPublishResponse
	publishURL := fmt.Sprintf("%s/%s/media_publish", instagramGraphURL, handle)
	publishReq := instagramPublishRequest{CreationID: container.ID, AccessToken: token.AccessToken}
	if err := doJSON(ctx, a.client, http.MethodPost, publishURL, nil, publishReq, &published); err != nil {
		return "", err
	}
	if published.ID == "" {
		return "", fmt.Errorf("instagram returned no media id")
	}
	return published.ID, nil
}

func (a *instagramAPI) fetchMetrics(ctx context.Context, token *oauth2.Token, handle string, since time.Time) ([]MetricSample, error) {
	url := fmt.Sprintf("%s/%s/insights?metric=impressions,reach&period=day&since=%d&access_token=%s",
		instagramGraphURL, handle, since.Unix(), token.AccessToken)

	var resp instagramInsightsResponse
	if err := doJSON(ctx, a.client, http.MethodGet, url, nil, nil, &resp); err != nil {
		return nil, err
	}

	sample := MetricSample{PublishedID: handle, CollectedAt: time.Now()}
	for _, d := range resp.Data {
		if d.Name == "impressions" && len(d.Values) > 0 {
			sample.Impressions = d.Values[len(d.Values)-1].Value
		}
	}
	return []MetricSample{sample}, nil
}
