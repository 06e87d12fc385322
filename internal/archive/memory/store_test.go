package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_PutAndGet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	uri, err := s.Put(context.Background(), "pages/abc.html", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	require.Equal(t, "mem://pages/abc.html", uri)

	obj, ok := s.Get("pages/abc.html")
	require.True(t, ok)
	require.Equal(t, "text/html", obj.ContentType)
	require.Equal(t, []byte("<html/>"), obj.Data)
	require.Equal(t, 1, s.Len())

	_, ok = s.Get("pages/missing.html")
	require.False(t, ok)
}
