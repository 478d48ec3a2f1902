package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/postpilot/dispatch/internal/platform"
)

const facebookGraphURL = "https://graph.facebook.com/v19.0"

type facebookAPI struct {
	client Doer
}

type facebookPostRequest struct {
	Message     string `json:"message"`
	Link        string `json:"link,omitempty"`
	AccessToken string `json:"access_token"`
}

type facebookPostResponse struct {
	ID string `json:"id"`
}

type facebookInsightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int64 `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

func (a *facebookAPI) platform() platform.Platform { return platform.Facebook }

func (a *facebookAPI) publishOnce(ctx context.Context, item PublishItem, token *oauth2.Token, handle string) (string, error) {
	url := fmt.Sprintf("%s/%s/feed", facebookGraphURL, handle)
	req := facebookPostRequest{Message: item.Body, Link: item.MediaURL, AccessToken: token.AccessToken}

	var resp facebookPostResponse
	if err := doJSON(ctx, a.client, http.MethodPost, url, nil, req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("facebook returned no post id")
	}
	return resp.ID, nil
}

func (a *facebookAPI) fetchMetrics(ctx context.Context, token *oauth2.Token, handle string, since time.Time) ([]MetricSample, error) {
	url := fmt.Sprintf("%s/%s/insights?metric=page_impressions,page_post_engagements&since=%d&access_token=%s",
		facebookGraphURL, handle, since.Unix(), token.AccessToken)

	var resp facebookInsightsResponse
	if err := doJSON(ctx, a.client, http.MethodGet, url, nil, nil, &resp); err != nil {
		return nil, err
	}

	sample := MetricSample{PublishedID: handle, CollectedAt: time.Now()}
	for _, d := range resp.Data {
		if len(d.Values) == 0 {
			continue
		}
		switch d.Name {
		case "page_impressions":
			sample.Impressions = d.Values[len(d.Values)-1].Value
		case "page_post_engagements":
			sample.Likes = d.Values[len(d.Values)-1].Value
		}
	}
	return []MetricSample{sample}, nil
}
