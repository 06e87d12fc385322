package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRobots_DisallowedPath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/robots.txt", r.URL.Path)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	}))
	defer srv.Close()

	r := NewRobots("webgraph", zap.NewNop())
	ctx := context.Background()
	require.True(t, r.Allowed(ctx, srv.URL+"/public/page"))
	require.False(t, r.Allowed(ctx, srv.URL+"/private/page"))
	require.True(t, r.Allowed(ctx, srv.URL))
}

func TestRobots_CachesPerHost(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow:\n"))
	}))
	defer srv.Close()

	r := NewRobots("webgraph", zap.NewNop())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.True(t, r.Allowed(ctx, srv.URL+"/page"))
	}
	require.EqualValues(t, 1, fetches.Load())
}

func TestRobots_FetchFailureAllows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("unused"))
	}))
	srv.Close() // connection refused from here on

	r := NewRobots("webgraph", zap.NewNop())
	require.True(t, r.Allowed(context.Background(), srv.URL+"/anything"))
}

func TestRobots_NotFoundAllowsEverything(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := NewRobots("webgraph", zap.NewNop())
	require.True(t, r.Allowed(context.Background(), srv.URL+"/private/page"))
}
