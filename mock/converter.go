package mock

import "github.com/fwojciec/leadscout"

var _ leadscout.Converter = (*Converter)(nil)

// Converter is a mock implementation of leadscout.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
