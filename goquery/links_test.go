package goquery_test

import (
	"testing"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkExtractor_ExtractLinks(t *testing.T) {
	t.Parallel()

	t.Run("implements leadscout.LinkExtractor", func(t *testing.T) {
		t.Parallel()
		var _ leadscout.LinkExtractor = goquery.NewLinkExtractor()
	})

	t.Run("keeps same-site links in document order", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/products/gloves">Gloves</a>
			<a href="https://shop.example/about#team">About</a>
			<a href="https://blog.shop.example/news">Blog</a>
			<a href="https://marketplace.example/item/1">Marketplace</a>
			<a href="/products/gloves">Gloves again</a>
		</body></html>`

		links, err := goquery.NewLinkExtractor().ExtractLinks(html, "https://shop.example/")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"https://shop.example/products/gloves",
			"https://shop.example/about",
			"https://blog.shop.example/news",
		}, links)
	})

	t.Run("skips non-page and self links", func(t *testing.T) {
		t.Parallel()

		html := `<a href="mailto:sales@shop.example">Mail</a>
			<a href="tel:+123">Call</a>
			<a href="javascript:void(0)">JS</a>
			<a href="#top">Top</a>
			<a href="ftp://shop.example/file">FTP</a>
			<a href="/login" rel="nofollow">Login</a>
			<a href="contact">Contact</a>`

		links, err := goquery.NewLinkExtractor().ExtractLinks(html, "https://shop.example/about")
		require.NoError(t, err)
		assert.Equal(t, []string{"https://shop.example/contact"}, links)
	})

	t.Run("honors base href", func(t *testing.T) {
		t.Parallel()

		html := `<head><base href="https://shop.example/catalog/"></head><a href="boots">Boots</a>`
		links, err := goquery.NewLinkExtractor().ExtractLinks(html, "https://shop.example/")
		require.NoError(t, err)
		assert.Equal(t, []string{"https://shop.example/catalog/boots"}, links)
	})

	t.Run("rejects an invalid base URL", func(t *testing.T) {
		t.Parallel()

		_, err := goquery.NewLinkExtractor().ExtractLinks("<a href='/x'>x</a>", "/relative")
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
	})
}
