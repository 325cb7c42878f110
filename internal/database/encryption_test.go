package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"payreminder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptorDisabledPassthrough(t *testing.T) {
	t.Setenv("PAYREMINDER_ENABLE_ENCRYPTION", "false")

	enc, err := NewEncryptor()
	require.NoError(t, err)

	value, err := enc.EncryptIfEnabled("51987654321")
	require.NoError(t, err)
	assert.Equal(t, "51987654321", value)

	value, err = enc.DecryptIfEnabled("51987654321")
	require.NoError(t, err)
	assert.Equal(t, "51987654321", value)
}

func TestEncryptorRoundTrip(t *testing.T) {
	t.Setenv("PAYREMINDER_ENABLE_ENCRYPTION", "true")
	t.Setenv("PAYREMINDER_ENCRYPTION_SECRET", strings.Repeat("s", 32))

	enc, err := NewEncryptor()
	require.NoError(t, err)

	ciphertext, err := enc.EncryptIfEnabled("51987654321")
	require.NoError(t, err)
	assert.NotEqual(t, "51987654321", ciphertext)

	plaintext, err := enc.DecryptIfEnabled(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "51987654321", plaintext)
}

func TestEncryptorRequiresStrongSecret(t *testing.T) {
	t.Setenv("PAYREMINDER_ENABLE_ENCRYPTION", "true")
	t.Setenv("PAYREMINDER_ENCRYPTION_SECRET", "short")

	_, err := NewEncryptor()
	assert.Error(t, err)
}

func TestDatabaseEncryptsAtRest(t *testing.T) {
	t.Setenv("PAYREMINDER_ENABLE_ENCRYPTION", "true")
	t.Setenv("PAYREMINDER_ENCRYPTION_SECRET", strings.Repeat("k", 32))

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, db.Close())
	}()

	ctx := context.Background()
	id, err := db.EnqueueMessage(ctx, &models.QueueEntry{
		Destination: "51987654321",
		Body:        "mensaje confidencial",
	})
	require.NoError(t, err)

	// The raw column must not carry the plaintext.
	var rawDestination, rawBody string
	row := db.db.QueryRowContext(ctx, "SELECT destination, body FROM message_queue WHERE id = ?", id)
	require.NoError(t, row.Scan(&rawDestination, &rawBody))
	assert.NotEqual(t, "51987654321", rawDestination)
	assert.NotEqual(t, "mensaje confidencial", rawBody)

	// Reads decrypt transparently.
	entry, err := db.GetEntry(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "51987654321", entry.Destination)
	assert.Equal(t, "mensaje confidencial", entry.Body)
}
