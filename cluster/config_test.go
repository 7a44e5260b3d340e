package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(`{"nodeName":"a","port":5000}`))
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 5000, cfg.Port)
	require.Equal(t, 5000, cfg.HeartbeatIntervalMs)
	require.Equal(t, 3, cfg.HeartbeatMissThreshold)
	require.Equal(t, 1000, cfg.ReconnectBaseDelayMs)
	require.Equal(t, 30000, cfg.ReconnectMaxDelayMs)
	require.Equal(t, "a@0.0.0.0:5000", cfg.NodeID())
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	_, err := ParseConfig([]byte(`{"nodeName":"a","bogusKey":true}`))
	require.Error(t, err)
}

func TestParseConfigRequiresNodeName(t *testing.T) {
	t.Parallel()

	_, err := ParseConfig([]byte(`{}`))
	require.Error(t, err)
	var cfgErr *InvalidClusterConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseConfigRejectsInvalidSeed(t *testing.T) {
	t.Parallel()

	_, err := ParseConfig([]byte(`{"nodeName":"a","seeds":["not-a-node-id"]}`))
	require.Error(t, err)
}
