package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/postpilot/dispatch/internal/platform"
)

const telegramBaseURL = "https://api.telegram.org"

type telegramAPI struct {
	client Doer
}

type telegramSendRequest struct {
	ChatID   string `json:"chat_id"`
	Text     string `json:"text"`
	Photo    string `json:"photo,omitempty"`
	Caption  string `json:"caption,omitempty"`
	ParseMod string `json:"parse_mode,omitempty"`
}

type telegramSendResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Description string `json:"description"`
}

func (a *telegramAPI) platform() platform.Platform { return platform.Telegram }

// publishOnce sends the item to the channel named by the account handle. The
// bot token is the credential.
func (a *telegramAPI) publishOnce(ctx context.Context, item PublishItem, token *oauth2.Token, handle string) (string, error) {
	method := "sendMessage"
	req := telegramSendRequest{ChatID: handle, Text: item.Body}
	if item.MediaURL != "" && item.MediaKind == "image" {
		method = "sendPhoto"
		req = telegramSendRequest{ChatID: handle, Photo: item.MediaURL, Caption: item.Body}
	}

	url := fmt.Sprintf("%s/bot%s/%s", telegramBaseURL, token.AccessToken, method)
	var resp telegramSendResponse
	if err := doJSON(ctx, a.client, http.MethodPost, url, nil, req, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("telegram rejected message: %s", resp.Description)
	}
	return strconv.FormatInt(resp.Result.MessageID, 10), nil
}

func (a *telegramAPI) fetchMetrics(ctx context.Context, token *oauth2.Token, handle string, since time.Time) ([]MetricSample, error) {
	// The bot API exposes no per-message engagement metrics.
	return nil, nil
}
