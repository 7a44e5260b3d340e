package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateNodeID(t *testing.T) {
	t.Parallel()

	valid := []string{
		"a@127.0.0.1:4369",
		"node-1@host.example.com:80",
		"Node_A@10.0.0.1:1",
	}
	for _, id := range valid {
		require.NoError(t, ValidateNodeID(id), id)
	}

	invalid := []string{
		"",
		"noat127.0.0.1:4369",
		"a@host",
		"a@host:",
		"a@host:123456",
		"a b@host:4369",
	}
	for _, id := range invalid {
		require.Error(t, ValidateNodeID(id), id)
	}
}

func TestAddrFromNodeID(t *testing.T) {
	t.Parallel()

	addr, err := addrFromNodeID("a@127.0.0.1:4369")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:4369", addr)

	_, err = addrFromNodeID("not-a-node-id")
	require.Error(t, err)
}
