package publicsuffix_test

import (
	"testing"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/publicsuffix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://www.GloveShop.com/products/x?y=1", "gloveshop.com"},
		{"shop.gloveshop.co.uk", "gloveshop.co.uk"},
		{"gloveshop.com.au:8443", "gloveshop.com.au"},
		{"http://127.0.0.1:5555/page", "127.0.0.1"},
		{"localhost", "localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := publicsuffix.Domain(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("rejects empty input", func(t *testing.T) {
		t.Parallel()

		_, err := publicsuffix.Domain("")
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
	})
}

func TestSameSite(t *testing.T) {
	t.Parallel()

	assert.True(t, publicsuffix.SameSite("https://shop.example.com/a", "example.com"))
	assert.True(t, publicsuffix.SameSite("https://www.example.com", "http://example.com/b"))
	assert.False(t, publicsuffix.SameSite("https://example.com", "https://example.org"))
	assert.False(t, publicsuffix.SameSite("", "example.com"))
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.com/", "https://example.com"},
		{"https://example.com/products/#reviews", "https://example.com/products"},
		{"HTTP://example.com:80/a/", "http://example.com/a"},
		{"https://example.com:8443/a?b=1", "https://example.com:8443/a?b=1"},
	}
	for _, tt := range tests {
		got, err := publicsuffix.Canonical(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := publicsuffix.Canonical("mailto:sales@example.com")
	assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
}

func TestRoot(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://example.com", publicsuffix.Root("example.com"))
	assert.Equal(t, "http://127.0.0.1:8080", publicsuffix.Root("http://127.0.0.1:8080/x"))
}
