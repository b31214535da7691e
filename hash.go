package leadscout

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashContent returns the content hash used across the pipeline to detect
// unchanged text.
func HashContent(content string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(content))
}
