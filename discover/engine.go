package discover

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/publicsuffix"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Engine defaults.
const (
	DefaultParallelism = 3
	DefaultPages       = 1
	DefaultInterval    = 3 * time.Second
	DefaultJitter      = 2 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultMaxErrors   = 5
	DefaultMaxResults  = 500
	DefaultProbeLimit  = 8
	DefaultVetGrace    = 15 * time.Second
)

// backoffFactor multiplies a driver's pacing interval after a failed query.
const backoffFactor = 1.5

// DefaultBlacklist holds host labels of marketplaces, social networks and
// search engines that never make useful leads.
var DefaultBlacklist = []string{
	"google", "bing", "brave", "duckduckgo", "yahoo", "youtube", "facebook",
	"linkedin", "instagram", "pinterest", "twitter", "x", "tiktok", "reddit",
	"wikipedia", "amazon", "ebay", "etsy", "walmart", "alibaba", "aliexpress",
	"temu", "daraz", "exporthub", "etradeasia",
}

// shopPathHints are URL path fragments that count as a commerce signal on
// their own.
var shopPathHints = []string{"/cart", "/checkout", "/product", "/collections", "/shop"}

// DriverState is the lifecycle state of an engine driver.
type DriverState string

// DriverState constants.
const (
	DriverIdle    DriverState = "idle"
	DriverRunning DriverState = "running"
	DriverPaused  DriverState = "paused"
	DriverStopped DriverState = "stopped"
	DriverDone    DriverState = "done"
)

// Attention reports a driver that is paused on a bot challenge and waits for
// a human to solve it and call Engine.Resume.
type Attention struct {
	Engine string    `json:"engine"`
	Query  string    `json:"query"`
	Page   int       `json:"page"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// DriverStats summarizes one driver's run.
type DriverStats struct {
	Engine     string      `json:"engine"`
	State      DriverState `json:"state"`
	Queries    int         `json:"queries"`
	Results    int         `json:"results"`
	Errors     int         `json:"errors"`
	Challenges int         `json:"challenges"`
	LastError  string      `json:"lastError,omitempty"`
}

// Report is the outcome of a discovery run.
type Report struct {
	// Candidates counts distinct domains found before soft vetting.
	Candidates int `json:"candidates"`
	// Accepted lists domains that passed soft vetting, sorted.
	Accepted []string `json:"accepted"`
	// Discarded lists domains that failed soft vetting, sorted.
	Discarded []string      `json:"discarded"`
	Hits      int           `json:"hits"`
	Stats     []DriverStats `json:"stats"`
}

// Engine runs one driver per search engine. Each driver issues its queries
// one at a time with randomized pacing, pauses on bot challenges until
// resumed, and stops on its own after MaxErrors consecutive failures without
// affecting the others.
type Engine struct {
	Engines []leadscout.SearchEngine
	Prober  leadscout.SoftProber
	Domains leadscout.DomainService
	Hits    leadscout.HitService

	Parallelism int
	// Pages is the number of result pages requested per query.
	Pages int
	// Interval is the base delay between queries of one driver. A negative
	// interval disables pacing.
	Interval time.Duration
	Jitter   time.Duration
	// MaxDelay caps the backed-off interval.
	MaxDelay  time.Duration
	MaxErrors int
	// MaxResults caps the number of candidate domains per run.
	MaxResults int
	ProbeLimit int
	// VetGrace is how long soft vetting may continue after ctx is canceled,
	// so hits collected before the cancel are still persisted. Candidates
	// not vetted by then are discarded.
	VetGrace time.Duration
	// Broadcast sends every query to every engine instead of partitioning
	// queries across engines.
	Broadcast bool
	Blacklist []string

	// OnAttention is called when a driver pauses.
	OnAttention func(Attention)
	Logger      *slog.Logger

	mu        sync.Mutex
	running   bool
	limit     int
	drivers   map[string]*driver
	urls      map[string]struct{}
	candidate map[string]*candidate
	order     []string
}

type driver struct {
	engine    leadscout.SearchEngine
	limiter   *rate.Limiter
	delay     time.Duration
	resume    chan struct{}
	stats     DriverStats
	attention *Attention
}

type candidate struct {
	domain string
	hits   []*leadscout.DiscoveredHit
}

// Run searches every query and returns what was found. Accepted domains and
// their hits are persisted; candidates failing soft vetting are dropped
// without a Domain record. Cancellation returns the partial report with the
// context error.
func (e *Engine) Run(ctx context.Context, queries []string) (*Report, error) {
	return e.RunLimit(ctx, queries, 0)
}

// RunLimit is Run with a candidate cap for this run only. Zero keeps
// MaxResults.
func (e *Engine) RunLimit(ctx context.Context, queries []string, maxResults int) (*Report, error) {
	if len(e.Engines) == 0 {
		return nil, leadscout.Errorf(leadscout.EINVALID, "no search engines configured")
	}
	if err := e.start(maxResults); err != nil {
		return nil, err
	}
	defer e.stop()

	assignments := e.assign(queries)
	g := new(errgroup.Group)
	g.SetLimit(e.parallelism())
	for _, d := range e.driverList() {
		g.Go(func() error {
			e.drive(ctx, d, assignments[d.engine.Name()])
			return nil
		})
	}
	_ = g.Wait()

	report := e.vet(ctx)
	return report, ctx.Err()
}

// Resume releases a driver paused on a challenge.
func (e *Engine) Resume(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drivers[name]
	if !ok {
		return leadscout.Errorf(leadscout.ENOTFOUND, "engine %q is not running", name)
	}
	if d.stats.State != DriverPaused {
		return leadscout.Errorf(leadscout.ECONFLICT, "engine %q is not paused", name)
	}
	select {
	case d.resume <- struct{}{}:
	default:
	}
	return nil
}

// Attention returns the drivers currently waiting for a human, by engine name.
func (e *Engine) Attention() []Attention {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Attention
	for _, d := range e.drivers {
		if d.attention != nil {
			out = append(out, *d.attention)
		}
	}
	slices.SortFunc(out, func(a, b Attention) int { return strings.Compare(a.Engine, b.Engine) })
	return out
}

// Stats returns a snapshot of the driver statistics, by engine name.
func (e *Engine) Stats() []DriverStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *Engine) statsLocked() []DriverStats {
	out := make([]DriverStats, 0, len(e.drivers))
	for _, d := range e.drivers {
		out = append(out, d.stats)
	}
	slices.SortFunc(out, func(a, b DriverStats) int { return strings.Compare(a.Engine, b.Engine) })
	return out
}

func (e *Engine) start(limit int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return leadscout.Errorf(leadscout.ECONFLICT, "discovery already running")
	}
	e.running = true
	e.limit = limit
	e.drivers = make(map[string]*driver, len(e.Engines))
	e.urls = make(map[string]struct{})
	e.candidate = make(map[string]*candidate)
	e.order = nil
	for _, se := range e.Engines {
		e.drivers[se.Name()] = &driver{
			engine:  se,
			limiter: rate.NewLimiter(rate.Every(e.interval()), 1),
			delay:   e.interval(),
			resume:  make(chan struct{}, 1),
			stats:   DriverStats{Engine: se.Name(), State: DriverIdle},
		}
	}
	return nil
}

func (e *Engine) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
}

func (e *Engine) driverList() []*driver {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*driver, 0, len(e.Engines))
	for _, se := range e.Engines {
		out = append(out, e.drivers[se.Name()])
	}
	return out
}

// assign maps engine names to their queries.
func (e *Engine) assign(queries []string) map[string][]string {
	out := make(map[string][]string, len(e.Engines))
	for i, q := range queries {
		if e.Broadcast {
			for _, se := range e.Engines {
				out[se.Name()] = append(out[se.Name()], q)
			}
			continue
		}
		name := e.Engines[i%len(e.Engines)].Name()
		out[name] = append(out[name], q)
	}
	return out
}

func (e *Engine) drive(ctx context.Context, d *driver, queries []string) {
	name := d.engine.Name()
	logger := e.logger().With("engine", name)
	e.setState(d, DriverRunning)

	consecutive := 0
	for _, q := range queries {
		if ctx.Err() != nil || e.full() {
			break
		}
		e.update(d, func(s *DriverStats) { s.Queries++ })

		for page := 0; page < e.pages(); page++ {
			if err := e.pace(ctx, d); err != nil {
				e.setState(d, DriverStopped)
				return
			}

			results, err := d.engine.Search(ctx, q, page)
			if leadscout.ErrorCode(err) == leadscout.ECHALLENGE {
				if err := e.pause(ctx, d, q, page, err); err != nil {
					e.setState(d, DriverStopped)
					return
				}
				page--
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					e.setState(d, DriverStopped)
					return
				}
				consecutive++
				e.backoff(d)
				e.update(d, func(s *DriverStats) {
					s.Errors++
					s.LastError = describe(err)
				})
				logger.Warn("search failed", "query", q, "page", page, "error", err, "consecutive", consecutive)
				if consecutive >= e.maxErrors() {
					logger.Error("driver stopped", "errors", consecutive)
					e.setState(d, DriverStopped)
					return
				}
				break
			}

			consecutive = 0
			e.recover(d)
			added := e.collect(name, q, results)
			e.update(d, func(s *DriverStats) { s.Results += added })
			logger.Debug("search page", "query", q, "page", page, "results", len(results), "new", added)
			if len(results) == 0 {
				break
			}
		}
	}
	e.setState(d, DriverDone)
}

// pace waits for the driver's limiter plus a random jitter.
func (e *Engine) pace(ctx context.Context, d *driver) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if e.Jitter <= 0 {
		return nil
	}
	timer := time.NewTimer(rand.N(e.Jitter))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) backoff(d *driver) {
	d.delay = min(time.Duration(float64(max(d.delay, time.Millisecond))*backoffFactor), e.maxDelay())
	d.limiter.SetLimit(rate.Every(d.delay))
}

func (e *Engine) recover(d *driver) {
	if d.delay != e.interval() {
		d.delay = e.interval()
		d.limiter.SetLimit(rate.Every(d.delay))
	}
}

// pause suspends the driver until Resume is called for it or ctx ends.
func (e *Engine) pause(ctx context.Context, d *driver, query string, page int, cause error) error {
	a := Attention{
		Engine: d.engine.Name(),
		Query:  query,
		Page:   page,
		Reason: leadscout.ErrorMessage(cause),
		At:     time.Now().UTC(),
	}
	e.mu.Lock()
	d.stats.State = DriverPaused
	d.stats.Challenges++
	d.attention = &a
	e.mu.Unlock()

	e.logger().Warn("driver paused on challenge", "engine", a.Engine, "query", query)
	if e.OnAttention != nil {
		e.OnAttention(a)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.resume:
	}

	e.mu.Lock()
	d.stats.State = DriverRunning
	d.attention = nil
	e.mu.Unlock()
	e.logger().Info("driver resumed", "engine", a.Engine)
	return nil
}

// collect records results as hits and returns how many new URLs were added.
func (e *Engine) collect(engine, query string, results []leadscout.SearchResult) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	added := 0
	for _, r := range results {
		u, err := publicsuffix.Canonical(r.URL)
		if err != nil {
			continue
		}
		domain, err := publicsuffix.Domain(u)
		if err != nil || e.blacklisted(domain) {
			continue
		}
		if _, ok := e.urls[u]; ok {
			continue
		}
		c, ok := e.candidate[domain]
		if !ok {
			if len(e.candidate) >= e.maxResults() {
				continue
			}
			c = &candidate{domain: domain}
			e.candidate[domain] = c
			e.order = append(e.order, domain)
		}
		e.urls[u] = struct{}{}
		c.hits = append(c.hits, &leadscout.DiscoveredHit{
			Domain:       domain,
			URL:          u,
			Query:        query,
			Engine:       engine,
			Rank:         r.Rank,
			Snippet:      r.Snippet,
			DiscoveredAt: time.Now().UTC(),
		})
		added++
	}
	return added
}

func (e *Engine) full() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.candidate) >= e.maxResults()
}

// blacklisted matches the first label of a registrable domain, so
// amazon.co.uk and amazon.com are both excluded by "amazon".
func (e *Engine) blacklisted(domain string) bool {
	list := e.Blacklist
	if list == nil {
		list = DefaultBlacklist
	}
	label, _, _ := strings.Cut(domain, ".")
	return slices.Contains(list, label)
}

// vet soft-vets the candidates and persists the accepted ones.
func (e *Engine) vet(ctx context.Context) *Report {
	e.mu.Lock()
	candidates := make([]*candidate, 0, len(e.order))
	for _, d := range e.order {
		candidates = append(candidates, e.candidate[d])
	}
	stats := e.statsLocked()
	e.mu.Unlock()

	report := &Report{Candidates: len(candidates), Stats: stats}
	accepted := make([]bool, len(candidates))

	vctx, cancel := e.vetContext(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(vctx)
	g.SetLimit(e.probeLimit())
	for i, c := range candidates {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			ok, err := e.admit(gctx, c)
			if err != nil {
				e.logger().Warn("persist failed", "domain", c.domain, "error", err)
				return nil
			}
			accepted[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range candidates {
		if accepted[i] {
			report.Accepted = append(report.Accepted, c.domain)
			report.Hits += len(c.hits)
		} else {
			report.Discarded = append(report.Discarded, c.domain)
		}
	}
	slices.Sort(report.Accepted)
	slices.Sort(report.Discarded)
	return report
}

// vetContext outlives ctx by VetGrace.
func (e *Engine) vetContext(ctx context.Context) (context.Context, context.CancelFunc) {
	vctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, func() {
		t := time.NewTimer(e.vetGrace())
		defer t.Stop()
		select {
		case <-t.C:
			e.logger().Warn("soft vetting cut short after cancel", "grace", e.vetGrace())
			cancel()
		case <-vctx.Done():
		}
	})
	return vctx, func() {
		stop()
		cancel()
	}
}

// admit persists a candidate if it is already known or passes soft vetting.
func (e *Engine) admit(ctx context.Context, c *candidate) (bool, error) {
	sources := e.sources(c)

	if _, err := e.Domains.FindDomainByName(ctx, c.domain); err == nil {
		if _, err := e.Domains.UpdateDomain(ctx, c.domain, leadscout.DomainUpdate{Sources: sources}); err != nil {
			return false, err
		}
		return true, e.Hits.CreateHits(ctx, c.hits)
	} else if leadscout.ErrorCode(err) != leadscout.ENOTFOUND {
		return false, err
	}

	var signals leadscout.SoftSignals
	if e.Prober != nil {
		s, err := e.Prober.Probe(ctx, c.domain)
		if err != nil {
			e.logger().Debug("soft probe failed", "domain", c.domain, "error", err)
		} else {
			signals = *s
		}
		if ctx.Err() != nil {
			return false, nil
		}
		if !signals.Any() && !hasShopPath(c.hits) {
			return false, nil
		}
	}

	d := &leadscout.Domain{Name: c.domain, Sources: sources, Signals: signals}
	if err := e.Domains.CreateDomain(ctx, d); err != nil && leadscout.ErrorCode(err) != leadscout.ECONFLICT {
		return false, err
	}
	return true, e.Hits.CreateHits(ctx, c.hits)
}

func (e *Engine) sources(c *candidate) []string {
	var out []string
	for _, h := range c.hits {
		if !slices.Contains(out, h.Engine) {
			out = append(out, h.Engine)
		}
	}
	return out
}

// describe returns the message of application errors and the full text of
// anything else.
func describe(err error) string {
	if leadscout.ErrorCode(err) == leadscout.EINTERNAL {
		return err.Error()
	}
	return leadscout.ErrorMessage(err)
}

func hasShopPath(hits []*leadscout.DiscoveredHit) bool {
	for _, h := range hits {
		u := strings.ToLower(h.URL)
		for _, hint := range shopPathHints {
			if strings.Contains(u, hint) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) setState(d *driver, s DriverState) {
	e.update(d, func(st *DriverStats) { st.State = s })
}

func (e *Engine) update(d *driver, fn func(*DriverStats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&d.stats)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (e *Engine) parallelism() int {
	if e.Parallelism > 0 {
		return e.Parallelism
	}
	return DefaultParallelism
}

func (e *Engine) pages() int {
	if e.Pages > 0 {
		return e.Pages
	}
	return DefaultPages
}

func (e *Engine) interval() time.Duration {
	if e.Interval > 0 {
		return e.Interval
	}
	if e.Interval < 0 {
		return 0
	}
	return DefaultInterval
}

func (e *Engine) maxDelay() time.Duration {
	if e.MaxDelay > 0 {
		return e.MaxDelay
	}
	return DefaultMaxDelay
}

func (e *Engine) maxErrors() int {
	if e.MaxErrors > 0 {
		return e.MaxErrors
	}
	return DefaultMaxErrors
}

func (e *Engine) maxResults() int {
	if e.limit > 0 {
		return e.limit
	}
	if e.MaxResults > 0 {
		return e.MaxResults
	}
	return DefaultMaxResults
}

func (e *Engine) vetGrace() time.Duration {
	if e.VetGrace > 0 {
		return e.VetGrace
	}
	return DefaultVetGrace
}

func (e *Engine) probeLimit() int {
	if e.ProbeLimit > 0 {
		return e.ProbeLimit
	}
	return DefaultProbeLimit
}
