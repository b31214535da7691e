//go:build integration

package rod_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<!DOCTYPE html>
<html>
<head><title>goalkeeper gloves - Search</title></head>
<body>
<ol id="results"></ol>
<script>
var results = [
  {url: "https://keeperpro.com/", title: "KeeperPro Goalkeeper Gloves"},
  {url: "https://gripmaster.de/", title: "Gripmaster Torwarthandschuhe"}
];
var list = document.getElementById('results');
results.forEach(function (r) {
  var li = document.createElement('li');
  li.className = 'result';
  li.innerHTML = '<a href="' + r.url + '">' + r.title + '</a>';
  list.appendChild(li);
});
</script>
</body>
</html>`

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns script rendered results", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(resultsPage))
		}))
		defer srv.Close()

		fetcher, err := rod.NewFetcher()
		require.NoError(t, err)
		defer fetcher.Close()

		html, err := fetcher.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)

		assert.Contains(t, html, `<li class="result"><a href="https://keeperpro.com/">`)
		assert.Contains(t, html, "Gripmaster Torwarthandschuhe")
	})

	t.Run("hides the webdriver flag", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><p id="wd"></p>
<script>document.getElementById('wd').textContent = 'webdriver=' + String(navigator.webdriver === true);</script>
</body></html>`))
		}))
		defer srv.Close()

		fetcher, err := rod.NewFetcher()
		require.NoError(t, err)
		defer fetcher.Close()

		html, err := fetcher.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Contains(t, html, "webdriver=false")
	})

	t.Run("returns context error when canceled", func(t *testing.T) {
		t.Parallel()

		fetcher, err := rod.NewFetcher()
		require.NoError(t, err)
		defer fetcher.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = fetcher.Fetch(ctx, "http://127.0.0.1:1/")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("times out on slow pages", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
			_, _ = w.Write([]byte(`<html><body>late</body></html>`))
		}))
		defer srv.Close()

		fetcher, err := rod.NewFetcher(rod.WithFetchTimeout(100 * time.Millisecond))
		require.NoError(t, err)
		defer fetcher.Close()

		_, err = fetcher.Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("refuses to fetch after close", func(t *testing.T) {
		t.Parallel()

		fetcher, err := rod.NewFetcher()
		require.NoError(t, err)
		require.NoError(t, fetcher.Close())
		require.NoError(t, fetcher.Close())

		_, err = fetcher.Fetch(context.Background(), "http://example.com")
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
		assert.Contains(t, leadscout.ErrorMessage(err), "closed")
	})
}
