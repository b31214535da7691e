package goquery_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/goquery"
	"github.com/fwojciec/leadscout/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchEngine_Parse(t *testing.T) {
	t.Parallel()

	t.Run("google unwraps redirect links and drops engine links", func(t *testing.T) {
		t.Parallel()

		html := `<html><body><div id="search">
			<div class="g">
				<a href="/url?q=https://keeperpro.example/gloves&amp;sa=U"><h3>Keeper Gloves</h3></a>
				<div class="VwiC3b">Pro  goalkeeper
					gloves</div>
			</div>
			<div class="g"><a href="https://maps.google.com/place"><h3>Maps</h3></a></div>
			<div class="g"><a href="https://glovehut.example/"><h3>Glove Hut</h3></a></div>
		</div></body></html>`

		e := goquery.NewSearchEngine(goquery.Google, nil)
		results, err := e.Parse(html, 1)
		require.NoError(t, err)
		assert.Equal(t, []leadscout.SearchResult{
			{URL: "https://keeperpro.example/gloves", Title: "Keeper Gloves", Snippet: "Pro goalkeeper gloves", Rank: 11},
			{URL: "https://glovehut.example/", Title: "Glove Hut", Rank: 12},
		}, results)
	})

	t.Run("duckduckgo unwraps uddg links and skips ads", func(t *testing.T) {
		t.Parallel()

		html := `<div class="results">
			<div class="result result--ad"><a class="result__a" href="https://ads.example/">Ad</a></div>
			<div class="result">
				<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgloves.example%2Fshop&amp;rut=abc">Gloves Shop</a>
				<a class="result__snippet">Buy gloves online</a>
			</div>
		</div>`

		results, err := goquery.NewSearchEngine(goquery.DuckDuckGo, nil).Parse(html, 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "https://gloves.example/shop", results[0].URL)
		assert.Equal(t, "Gloves Shop", results[0].Title)
		assert.Equal(t, "Buy gloves online", results[0].Snippet)
		assert.Equal(t, 1, results[0].Rank)
	})

	t.Run("deduplicates repeated targets", func(t *testing.T) {
		t.Parallel()

		html := `<ol>
			<li class="b_algo"><h2><a href="https://a.example/x">A</a></h2><p>one</p></li>
			<li class="b_algo"><h2><a href="https://a.example/x">A again</a></h2></li>
			<li class="b_algo"><h2><a href="https://b.example/">B</a></h2></li>
		</ol>`

		results, err := goquery.NewSearchEngine(goquery.Bing, nil).Parse(html, 0)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "https://b.example/", results[1].URL)
		assert.Equal(t, 2, results[1].Rank)
	})

	t.Run("challenge page returns ECHALLENGE", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>Our systems have detected unusual traffic from your computer network.
			<form id="captcha-form"></form></body></html>`

		_, err := goquery.NewSearchEngine(goquery.Google, nil).Parse(html, 0)
		require.Error(t, err)
		assert.Equal(t, leadscout.ECHALLENGE, leadscout.ErrorCode(err))
	})

	t.Run("empty results page is not an error", func(t *testing.T) {
		t.Parallel()

		results, err := goquery.NewSearchEngine(goquery.Bing, nil).Parse(`<ol id="b_results"></ol>`, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSearchEngine_Search(t *testing.T) {
	t.Parallel()

	t.Run("requests the page offset of the engine", func(t *testing.T) {
		t.Parallel()

		var requested string
		fetcher := &mock.Fetcher{
			FetchFn: func(_ context.Context, url string) (string, error) {
				requested = url
				return `<li class="b_algo"><h2><a href="https://a.example/">A</a></h2></li>`, nil
			},
		}

		e := goquery.NewSearchEngine(goquery.Bing, fetcher)
		assert.Equal(t, "bing", e.Name())

		results, err := e.Search(context.Background(), "goalkeeper gloves", 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, strings.HasPrefix(requested, "https://www.bing.com/search?q=goalkeeper+gloves"))
		assert.Contains(t, requested, "first=11")
		assert.Equal(t, 11, results[0].Rank)
	})

	t.Run("passes fetch errors through", func(t *testing.T) {
		t.Parallel()

		fetchErr := leadscout.Errorf(leadscout.ETRANSIENT, "timeout")
		fetcher := &mock.Fetcher{
			FetchFn: func(context.Context, string) (string, error) { return "", fetchErr },
		}

		_, err := goquery.NewSearchEngine(goquery.Google, fetcher).Search(context.Background(), "gloves", 0)
		assert.True(t, errors.Is(err, fetchErr))
	})

	t.Run("rejects empty query", func(t *testing.T) {
		t.Parallel()

		_, err := goquery.NewSearchEngine(goquery.Google, nil).Search(context.Background(), "  ", 0)
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
	})
}

func TestSpecs(t *testing.T) {
	t.Parallel()

	specs := goquery.Specs()
	for _, name := range []string{"google", "bing", "brave", "duckduckgo"} {
		spec, ok := specs[name]
		require.True(t, ok, name)
		assert.Equal(t, name, spec.Name)
		assert.Contains(t, spec.URL("gloves", 0), "gloves")
	}
}
