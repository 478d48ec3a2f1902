package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/postpilot/dispatch/internal/platform"
)

const linkedinPostURL = "https://api.linkedin.com/v2/ugcPosts"

type linkedinAPI struct {
	client Doer
}

type linkedinShareContent struct {
	ShareCommentary struct {
		Text string `json:"text"`
	} `json:"shareCommentary"`
	ShareMediaCategory string `json:"shareMediaCategory"`
}

type linkedinPostRequest struct {
	Author          string `json:"author"`
	LifecycleState  string `json:"lifecycleState"`
	SpecificContent struct {
		ShareContent linkedinShareContent `json:"com.linkedin.ugc.ShareContent"`
	} `json:"specificContent"`
	Visibility struct {
		MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
	} `json:"visibility"`
}

type linkedinPostResponse struct {
	ID string `json:"id"`
}

func (a *linkedinAPI) platform() platform.Platform { return platform.LinkedIn }

func (a *linkedinAPI) publishOnce(ctx context.Context, item PublishItem, token *oauth2.Token, handle string) (string, error) {
	var req linkedinPostRequest
	req.Author = "urn:li:person:" + handle
	req.LifecycleState = "PUBLISHED"
	req.SpecificContent.ShareContent.ShareCommentary.Text = item.Body
	req.SpecificContent.ShareContent.ShareMediaCategory = "NONE"
	if item.MediaURL != "" {
		req.SpecificContent.ShareContent.ShareMediaCategory = "ARTICLE"
	}
	req.Visibility.MemberNetworkVisibility = "PUBLIC"

	headers := bearer(token)
	headers["X-Restli-Protocol-Version"] = "2.0.0"

	var resp linkedinPostResponse
	if err := doJSON(ctx, a.client, http.MethodPost, linkedinPostURL, headers, req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("linkedin returned no post id")
	}
	return resp.ID, nil
}

func (a *linkedinAPI) fetchMetrics(ctx context.Context, token *oauth2.Token, handle string, since time.Time) ([]MetricSample, error) {
	// UGC analytics require a separate marketing-tier product; nothing to
	// fetch for member posts.
	return nil, nil
}
