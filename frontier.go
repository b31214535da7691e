package leadscout

// URLFrontier manages a breadth-first crawl queue with deduplication.
type URLFrontier interface {
	// Push queues an entry.
	// Returns false if the URL has already been seen.
	Push(entry FrontierEntry) bool

	// Pop returns the oldest queued entry.
	// Returns false if the frontier is empty.
	Pop() (FrontierEntry, bool)

	// Len returns the number of queued entries.
	Len() int

	// Seen returns true if the URL has been queued or marked.
	Seen(url string) bool
}
