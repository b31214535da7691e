package bluemonday_test

import (
	"testing"

	"github.com/fwojciec/leadscout/bluemonday"
	"github.com/stretchr/testify/assert"
)

func TestTextExtractor_Text(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "separates block text",
			html: `<div><h1>Keeper</h1><p>Pro</p><p>Gloves</p></div>`,
			want: "Keeper Pro Gloves",
		},
		{
			name: "drops script and style content",
			html: `<p>Shop</p><script>var cart = [];</script><style>p{color:red}</style><p>now</p>`,
			want: "Shop now",
		},
		{
			name: "unescapes entities",
			html: `<p>Gloves &amp; Bags &pound;25</p>`,
			want: "Gloves & Bags £25",
		},
		{
			name: "skips head",
			html: `<html><head><meta name="x"><title>T</title></head><body>Body text</body></html>`,
			want: "Body text",
		},
		{
			name: "empty",
			html: ``,
			want: "",
		},
	}

	e := bluemonday.NewTextExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.Text(tt.html))
		})
	}
}
