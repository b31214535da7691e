package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	lshttp "github.com/fwojciec/leadscout/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotsPolicy_Allowed(t *testing.T) {
	t.Parallel()

	t.Run("applies disallow rules and caches the file", func(t *testing.T) {
		t.Parallel()

		var fetches atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			fetches.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /checkout\nCrawl-delay: 2\n"))
		}))
		defer srv.Close()

		policy := lshttp.NewRobotsPolicy(srv.Client(), "leadscout-test")
		ctx := context.Background()

		ok, err := policy.Allowed(ctx, srv.URL+"/products/gloves")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = policy.Allowed(ctx, srv.URL+"/checkout/step1")
		require.NoError(t, err)
		assert.False(t, ok)

		delay, err := policy.CrawlDelay(ctx, srv.URL)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, delay)

		assert.Equal(t, int32(1), fetches.Load())
	})

	t.Run("missing robots.txt allows everything", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		policy := lshttp.NewRobotsPolicy(srv.Client(), "")
		ok, err := policy.Allowed(context.Background(), srv.URL+"/anything")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("server error disallows everything", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		policy := lshttp.NewRobotsPolicy(srv.Client(), "")
		ok, err := policy.Allowed(context.Background(), srv.URL+"/")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects relative URLs", func(t *testing.T) {
		t.Parallel()

		policy := lshttp.NewRobotsPolicy(nil, "")
		_, err := policy.Allowed(context.Background(), "/products")
		require.Error(t, err)
	})
}
