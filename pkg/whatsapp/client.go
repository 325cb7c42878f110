// Package whatsapp talks to the WhatsApp Business Cloud API. It only
// implements the text message surface the dispatch core needs.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	senderrors "payreminder/internal/errors"
	"payreminder/internal/models"
)

// CloudClient sends messages through the Cloud API messages endpoint.
type CloudClient struct {
	baseURL     string
	phoneID     string
	accessToken string
	client      *http.Client
}

func NewCloudClient(cfg models.ChannelConfig) *CloudClient {
	return &CloudClient{
		baseURL:     cfg.APIBaseURL,
		phoneID:     cfg.PhoneID,
		accessToken: cfg.AccessToken,
		client: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

// SendText posts a plain text message and returns the message id the
// channel assigned. Failures are classified so the dispatcher can record
// a meaningful last_error.
func (c *CloudClient) SendText(ctx context.Context, to, body string) (string, error) {
	payload := SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text: TextPayload{
			PreviewURL: false,
			Body:       body,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", senderrors.Wrap(err, senderrors.KindChannelTransport, "failed to encode message payload")
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", senderrors.Wrap(err, senderrors.KindChannelTransport, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", senderrors.Wrap(err, senderrors.KindChannelTimeout, "channel API timed out")
		}
		return "", senderrors.Wrap(err, senderrors.KindChannelTransport, "failed to reach channel API")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", senderrors.Wrap(err, senderrors.KindChannelTransport, "failed to read channel response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", senderrors.New(senderrors.KindChannelRejected, rejectionMessage(resp.StatusCode, respBody))
	}

	var result SendMessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", senderrors.Wrap(err, senderrors.KindChannelTransport, "failed to decode channel response")
	}
	if len(result.Messages) == 0 || result.Messages[0].ID == "" {
		return "", senderrors.New(senderrors.KindChannelRejected, "channel response carried no message id")
	}

	return result.Messages[0].ID, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// rejectionMessage prefers the API's own error text and falls back to the
// HTTP status when the body is not the documented error envelope.
func rejectionMessage(statusCode int, body []byte) string {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return fmt.Sprintf("channel API returned status %d", statusCode)
}

var _ Client = (*CloudClient)(nil)
