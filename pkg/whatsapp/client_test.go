package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	senderrors "payreminder/internal/errors"
	"payreminder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *CloudClient {
	return NewCloudClient(models.ChannelConfig{
		APIBaseURL:  url,
		PhoneID:     "12345",
		AccessToken: "test-token",
		TimeoutSec:  5,
	})
}

func TestSendTextSuccess(t *testing.T) {
	var captured SendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.ABC123"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	id, err := client.SendText(context.Background(), "51987654321", "Hola")
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC123", id)

	assert.Equal(t, "whatsapp", captured.MessagingProduct)
	assert.Equal(t, "individual", captured.RecipientType)
	assert.Equal(t, "51987654321", captured.To)
	assert.Equal(t, "text", captured.Type)
	assert.Equal(t, "Hola", captured.Text.Body)
	assert.False(t, captured.Text.PreviewURL)
}

func TestSendTextRejectedWithAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Recipient phone number not in allowed list","type":"OAuthException","code":131030}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.SendText(context.Background(), "51987654321", "Hola")
	require.Error(t, err)
	assert.Equal(t, senderrors.KindChannelRejected, senderrors.KindOf(err))
	assert.Equal(t, "Recipient phone number not in allowed list", senderrors.Reason(err))
}

func TestSendTextRejectedWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`gateway error`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.SendText(context.Background(), "51987654321", "Hola")
	require.Error(t, err)
	assert.Equal(t, senderrors.KindChannelRejected, senderrors.KindOf(err))
	assert.Equal(t, "channel API returned status 502", senderrors.Reason(err))
}

func TestSendTextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.SendText(ctx, "51987654321", "Hola")
	require.Error(t, err)
	assert.Equal(t, senderrors.KindChannelTimeout, senderrors.KindOf(err))
}

func TestSendTextTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(server.URL)

	_, err := client.SendText(context.Background(), "51987654321", "Hola")
	require.Error(t, err)
	assert.Equal(t, senderrors.KindChannelTransport, senderrors.KindOf(err))
}

func TestSendTextMissingMessageID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.SendText(context.Background(), "51987654321", "Hola")
	require.Error(t, err)
	assert.Equal(t, senderrors.KindChannelRejected, senderrors.KindOf(err))
}
