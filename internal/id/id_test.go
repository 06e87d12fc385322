package id

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTaskID(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for range 100 {
		got, err := NewTaskID()
		require.NoError(t, err)
		require.Len(t, got, 8)
		_, err = hex.DecodeString(got)
		require.NoError(t, err)
		seen[got] = struct{}{}
	}
	require.Greater(t, len(seen), 95, "ids should be effectively unique")
}

func TestNewRequestID(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, NewRequestID(), NewRequestID())
}
