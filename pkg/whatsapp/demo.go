package whatsapp

import (
	"context"
	"fmt"

	"payreminder/internal/errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DemoClient stands in for the Cloud API when credentials are not
// configured. It logs each message loudly instead of delivering it and
// returns a synthetic message id, so the full dispatch path can be
// exercised without a WhatsApp Business account.
type DemoClient struct {
	logger *logrus.Logger
}

func NewDemoClient(logger *logrus.Logger) *DemoClient {
	return &DemoClient{logger: logger}
}

func (c *DemoClient) SendText(ctx context.Context, to, body string) (string, error) {
	messageID := fmt.Sprintf("demo-%s", uuid.New().String())

	c.logger.WithFields(logrus.Fields{
		"to":         to,
		"message_id": messageID,
		"body_len":   len(body),
		"kind":       string(errors.KindChannelUnconfigured),
	}).Warn("DEMO MODE: message logged instead of sent (set WHATSAPP_PHONE_ID and WHATSAPP_ACCESS_TOKEN to deliver)")

	return messageID, nil
}

var _ Client = (*DemoClient)(nil)
