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
	xPostURL    = "https://api.x.com/2/tweets"
	xMetricsURL = "https://api.x.com/2/users/me/tweets"
)

type xAPI struct {
	client Doer
}

type xPostRequest struct {
	Text string `json:"text"`
}

type xPostResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type xMetricsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		PublicMetrics struct {
			ImpressionCount int64 `json:"impression_count"`
			LikeCount       int64 `json:"like_count"`
			ReplyCount      int64 `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

func (a *xAPI) platform() platform.Platform { return platform.X }

func (a *xAPI) publishOnce(ctx context.Context, item PublishItem, token *oauth2.Token, _ string) (string, error) {
	var resp xPostResponse
	err := doJSON(ctx, a.client, http.MethodPost, xPostURL, bearer(token), xPostRequest{Text: item.Body}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("x returned no post id")
	}
	return resp.Data.ID, nil
}

func (a *xAPI) fetchMetrics(ctx context.Context, token *oauth2.Token, _ string, since time.Time) ([]MetricSample, error) {
	url := fmt.Sprintf("%s?tweet.fields=public_metrics&start_time=%s", xMetricsURL, since.UTC().Format(time.RFC3339))
	var resp xMetricsResponse
	if err := doJSON(ctx, a.client, http.MethodGet, url, bearer(token), nil, &resp); err != nil {
		return nil, err
	}

	now := time.Now()
	samples := make([]MetricSample, 0, len(resp.Data))
	for _, d := range resp.Data {
		samples = append(samples, MetricSample{
			PublishedID: d.ID,
			Impressions: d.PublicMetrics.ImpressionCount,
			Likes:       d.PublicMetrics.LikeCount,
			Comments:    d.PublicMetrics.ReplyCount,
			CollectedAt: now,
		})
	}
	return samples, nil
}
