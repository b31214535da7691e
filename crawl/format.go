package crawl

import (
	"fmt"

	"github.com/fwojciec/leadscout"
)

// TruncateURL shortens a URL for display, keeping the end which is more informative.
func TruncateURL(url string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if maxLen < 4 {
		return url[:min(len(url), maxLen)]
	}
	if len(url) <= maxLen {
		return url
	}
	return "..." + url[len(url)-maxLen+3:]
}

// FormatEvent renders a progress event as one line, or "" for events that
// are not worth a line.
func FormatEvent(e ProgressEvent, width int) string {
	switch e.Type {
	case ProgressStored:
		return fmt.Sprintf("  + %s", TruncateURL(e.URL, width))
	case ProgressSkipped:
		return fmt.Sprintf("  = %s", TruncateURL(e.URL, width))
	case ProgressFailed:
		return fmt.Sprintf("  ! %s: %s", TruncateURL(e.URL, width), leadscout.ErrorMessage(e.Error))
	}
	return ""
}

// FormatResult summarizes a crawl result.
func FormatResult(r *Result) string {
	line := fmt.Sprintf("%s: %s (pass %d) fetched %d, stored %d, unchanged %d, failed %d",
		r.Domain, r.Status, r.Pass, r.Fetched, r.Stored, r.Skipped, r.Failed)
	if r.Disallowed > 0 {
		line += fmt.Sprintf(", disallowed %d", r.Disallowed)
	}
	if r.Err != nil {
		line += ": " + leadscout.ErrorMessage(r.Err)
	}
	return line
}
