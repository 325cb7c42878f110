package whatsapp

import "context"

// Client sends a text message to a destination phone number and returns
// the channel-assigned message id.
type Client interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// TextPayload is the body field of an outbound text message.
type TextPayload struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// SendMessageRequest is the Cloud API messages payload.
type SendMessageRequest struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             TextPayload `json:"text"`
}

// SendMessageResponse is the success body of the messages endpoint.
type SendMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// APIError is the error envelope the Cloud API returns on non-2xx
// responses.
type APIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}
