package whatsapp

import (
	"context"
	"strings"
	"testing"

	"payreminder/internal/errors"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoClientReturnsSyntheticID(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	client := NewDemoClient(logger)

	id, err := client.SendText(context.Background(), "51987654321", "Hola")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "demo-"))

	second, err := client.SendText(context.Background(), "51987654321", "Hola")
	require.NoError(t, err)
	assert.NotEqual(t, id, second)
}

func TestDemoClientFlagsUnconfiguredChannel(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	client := NewDemoClient(logger)

	_, err := client.SendText(context.Background(), "51987654321", "Hola")
	require.NoError(t, err)

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
	assert.Equal(t, string(errors.KindChannelUnconfigured), hook.Entries[0].Data["kind"])
}
