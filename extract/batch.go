package extract

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fwojciec/leadscout"
)

// Batching defaults.
const (
	DefaultBatchChars = 60000
	DefaultCharLimit  = 500000
)

// catalogHints mark URLs that likely list products. Such pages are batched
// first so the model sees the catalog before the rest of the site.
var catalogHints = []string{"/product", "/shop", "/collection", "/catalog", "/store"}

// Batch is a group of pages sent to the model in one call.
type Batch struct {
	Pages   int
	Content string
}

// Batches orders pages catalog-first and packs them into batches of at most
// size characters. A page is never split: one larger than size becomes a
// batch of its own. Pages beyond limit characters in total are dropped.
func Batches(pages []*leadscout.PageRecord, size, limit int) []Batch {
	ordered := slices.Clone(pages)
	slices.SortStableFunc(ordered, func(a, b *leadscout.PageRecord) int {
		ca, cb := isCatalog(a.URL), isCatalog(b.URL)
		switch {
		case ca && !cb:
			return -1
		case cb && !ca:
			return 1
		}
		return 0
	})

	var (
		batches []Batch
		cur     strings.Builder
		n       int
		total   int
	)
	flush := func() {
		if n > 0 {
			batches = append(batches, Batch{Pages: n, Content: cur.String()})
			cur.Reset()
			n = 0
		}
	}
	for _, p := range ordered {
		text := render(p)
		if limit > 0 && total+len(text) > limit {
			break
		}
		total += len(text)
		if n > 0 && cur.Len()+len(text) > size {
			flush()
		}
		cur.WriteString(text)
		n++
	}
	flush()
	return batches
}

func render(p *leadscout.PageRecord) string {
	title := p.Title
	if title == "" {
		title = "Page"
	}
	return fmt.Sprintf("# %s\nURL: %s\n\n%s\n\n---\n\n", title, p.URL, p.Content)
}

func isCatalog(url string) bool {
	u := strings.ToLower(url)
	for _, h := range catalogHints {
		if strings.Contains(u, h) {
			return true
		}
	}
	return false
}
