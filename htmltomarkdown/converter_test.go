package htmltomarkdown_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/htmltomarkdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverter_Convert(t *testing.T) {
	t.Parallel()

	t.Run("converts headings, links and lists", func(t *testing.T) {
		t.Parallel()

		html := `<h1>Grip Pro</h1>
<p>See the <a href="https://keeperpro.com/sizing">sizing guide</a>.</p>
<ul><li>4mm latex</li><li>Negative cut</li></ul>`

		md, err := htmltomarkdown.NewConverter().Convert(html)
		require.NoError(t, err)

		assert.Contains(t, md, "# Grip Pro")
		assert.Contains(t, md, "[sizing guide](https://keeperpro.com/sizing)")
		assert.Contains(t, md, "- 4mm latex")
		assert.Contains(t, md, "- Negative cut")
	})

	t.Run("keeps spec tables", func(t *testing.T) {
		t.Parallel()

		html := `<table>
<thead><tr><th>Size</th><th>Palm width</th></tr></thead>
<tbody><tr><td>8</td><td>9 cm</td></tr><tr><td>9</td><td>9.5 cm</td></tr></tbody>
</table>`

		md, err := htmltomarkdown.NewConverter().Convert(html)
		require.NoError(t, err)

		assert.Contains(t, md, "| Size")
		assert.Contains(t, md, "Palm width")
		assert.Contains(t, md, "9.5 cm")
	})

	t.Run("keeps struck-through list prices", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter().Convert(`<p>Price: <del>59.99</del> 49.99</p>`)
		require.NoError(t, err)

		assert.Contains(t, md, "~~59.99~~")
		assert.Contains(t, md, "49.99")
	})

	t.Run("collapses blank runs and trims", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter().Convert("<p>First</p>\n\n\n\n<div><div></div></div>\n\n<p>Second</p>")
		require.NoError(t, err)

		assert.NotContains(t, md, "\n\n\n")
		assert.Equal(t, strings.TrimSpace(md), md)
		assert.Contains(t, md, "First")
		assert.Contains(t, md, "Second")
	})

	t.Run("rejects empty input", func(t *testing.T) {
		t.Parallel()

		_, err := htmltomarkdown.NewConverter().Convert("   ")
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
	})
}
