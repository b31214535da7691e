package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/bluemonday"
	"github.com/fwojciec/leadscout/crawl"
	"github.com/fwojciec/leadscout/dedup"
	"github.com/fwojciec/leadscout/discover"
	"github.com/fwojciec/leadscout/extract"
	"github.com/fwojciec/leadscout/fs"
	"github.com/fwojciec/leadscout/gemini"
	"github.com/fwojciec/leadscout/goldmark"
	"github.com/fwojciec/leadscout/goquery"
	"github.com/fwojciec/leadscout/htmltomarkdown"
	lshttp "github.com/fwojciec/leadscout/http"
	"github.com/fwojciec/leadscout/index"
	"github.com/fwojciec/leadscout/pipeline"
	"github.com/fwojciec/leadscout/readability"
	"github.com/fwojciec/leadscout/retrieve"
	"github.com/fwojciec/leadscout/rod"
	lsslog "github.com/fwojciec/leadscout/slog"
	"github.com/fwojciec/leadscout/sqlite"
	"github.com/fwojciec/leadscout/trafilatura"
	"github.com/fwojciec/leadscout/vet"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()
	err := m.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		os.Exit(1)
	}
}

// describe prefers the application message and falls back to the full
// error for infrastructure failures.
func describe(err error) string {
	if leadscout.ErrorCode(err) == leadscout.EINTERNAL {
		return err.Error()
	}
	return leadscout.ErrorMessage(err)
}

// Main represents the program.
type Main struct {
	// Getenv reads environment overrides. Defaults to os.Getenv.
	Getenv func(string) string

	Config *Config
	DB     *sqlite.DB

	closers []io.Closer
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{Getenv: os.Getenv}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	if m.DB != nil {
		if err := m.DB.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// commands that cannot run without a Gemini API key.
var needsModel = []string{"extract", "embed", "search", "ask", "chat", "mcp"}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("leadscout"),
		kong.Description("Find, vet, crawl and index small e-commerce companies."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return leadscout.Errorf(leadscout.EINVALID, "no command specified. Run 'leadscout --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return leadscout.Errorf(leadscout.EINVALID, "%v", err)
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	path, explicit := cli.Config, cli.Config != ""
	if !explicit {
		if path = m.Getenv("LEADSCOUT_CONFIG"); path != "" {
			explicit = true
		} else {
			path = defaultConfigPath()
		}
	}
	cfg, err := LoadConfig(path, explicit, m.Getenv)
	if err != nil {
		return err
	}
	if cli.DB != "" {
		cfg.DB = cli.DB
	}
	if cli.Run.Industry != "" {
		cfg.Industry = cli.Run.Industry
	}
	m.Config = cfg
	deps.Config = cfg

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if cfg.DB != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	m.DB = sqlite.NewDB(cfg.DB)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintln(stderr, "Hint: set LEADSCOUT_DB to use a different database path")
		return fmt.Errorf("failed to open database at %q: %w", cfg.DB, err)
	}
	defer m.Close()

	if err := m.wire(ctx, cmd, deps); err != nil {
		return err
	}
	return kongCtx.Run(deps)
}

// wire builds the services the command needs. Browsers and model clients
// are only started for commands that use them.
func (m *Main) wire(ctx context.Context, cmd string, deps *Dependencies) error {
	cfg, logger := m.Config, deps.Logger

	deps.Domains = sqlite.NewDomainService(m.DB)
	deps.Vettings = sqlite.NewVettingService(m.DB)
	deps.Pages = sqlite.NewPageService(m.DB)
	deps.CrawlStates = sqlite.NewCrawlStateService(m.DB)
	deps.Extractions = sqlite.NewExtractionService(m.DB)
	deps.Jobs = sqlite.NewJobService(m.DB)
	deps.Exporter = fs.NewExporter(cfg.DataDir)

	var client *genai.Client
	if cfg.APIKey != "" {
		c, err := gemini.NewClient(ctx, cfg.APIKey)
		if err != nil {
			fmt.Fprintln(deps.Stderr, "Hint: check that GEMINI_API_KEY is valid")
			return err
		}
		client = c
	} else if slices.Contains(needsModel, cmd) {
		fmt.Fprintln(deps.Stderr, "Hint: get an API key at https://aistudio.google.com/apikey")
		return leadscout.Errorf(leadscout.EINVALID, "GEMINI_API_KEY not set")
	}

	userAgent := cfg.Crawl.UserAgent
	if userAgent == "" {
		userAgent = lshttp.DefaultUserAgent
	}
	httpClient := &stdhttp.Client{Timeout: lshttp.DefaultFetchTimeout}
	pageFetcher := lsslog.NewLoggingFetcher(lshttp.NewFetcher(lshttp.WithUserAgent(userAgent)), logger)
	m.closers = append(m.closers, pageFetcher)

	switch cmd {
	case "discover", "run", "serve":
		engine, err := m.discovery(deps, pageFetcher)
		if err != nil {
			return err
		}
		deps.Discovery = engine
		deps.Generator = discover.NewGenerator()
		deps.Dedup = &dedup.Deduplicator{
			Dedups:     sqlite.NewDedupService(m.DB),
			Hits:       sqlite.NewHitService(m.DB),
			Probe:      goquery.NewHomepageProbe(pageFetcher),
			Domains:    deps.Domains,
			Thresholds: cfg.Dedup,
			Logger:     logger,
		}
	}

	switch cmd {
	case "vet", "revet", "run", "serve":
		deps.Vetter = &vet.Vetter{
			Domains: deps.Domains,
			Records: deps.Vettings,
			Loader: &vet.Loader{
				Fetcher: pageFetcher,
				Text:    bluemonday.NewTextExtractor(),
				Paths:   vet.DefaultFallbackPaths,
				MinText: vet.DefaultMinText,
			},
			Rules: &vet.RuleVetter{
				Keywords:   vet.Keywords(cfg.Industry, cfg.Vet.Keywords...),
				Detector:   goquery.NewSignalDetector(),
				Thresholds: cfg.Vet.Thresholds,
			},
			Industry:    cfg.Industry,
			Parallelism: cfg.Vet.Parallelism,
			Logger:      logger,
		}
		if client != nil {
			deps.Vetter.Model = &vet.ModelVetter{
				Classifier:  lsslog.NewLoggingClassifier(gemini.NewClassifier(client, cfg.Models.Chat), logger),
				Records:     deps.Vettings,
				Limiter:     limiter(cfg.Vet.ModelRPS),
				RetryDelays: vet.DefaultModelRetryDelays,
				CallTimeout: cfg.Models.Timeout,
			}
		}
	}

	switch cmd {
	case "crawl", "run", "serve":
		throttle := crawl.NewThrottle(cfg.Crawl.MinDelay, cfg.Crawl.MaxDelay)
		deps.Crawler = &crawl.Crawler{
			Fetcher:   pageFetcher,
			Robots:    lshttp.NewRobotsPolicy(httpClient, userAgent),
			Sitemaps:  lsslog.NewLoggingSitemapService(lshttp.NewSitemapService(httpClient), logger),
			Links:     goquery.NewLinkExtractor(),
			Extractor: trafilatura.NewExtractor(readability.NewExtractor()),
			Converter: htmltomarkdown.NewConverter(),
			Pages:     deps.Pages,
			Domains:   deps.Domains,
			Arena:     crawl.NewArena(deps.CrawlStates),
			Limiter:   throttle,
			Pool:      semaphore.NewWeighted(cfg.Crawl.Pool),
			MaxPages:  cfg.Crawl.MaxPages,
			MaxDepth:  cfg.Crawl.MaxDepth,

			Concurrency: cfg.Crawl.Concurrency,
			Logger:      logger,
		}
	}

	if client == nil {
		return nil
	}

	switch cmd {
	case "extract", "run", "serve":
		deps.Extractor = &extract.Extractor{
			Pages:       deps.Pages,
			Model:       lsslog.NewLoggingCatalogModel(gemini.NewCatalogModel(client, cfg.Models.Chat), logger),
			Results:     deps.Extractions,
			Domains:     deps.Domains,
			Writer:      deps.Exporter,
			Industry:    cfg.Industry,
			Parallelism: cfg.Extract.Parallelism,
			Limiter:     limiter(cfg.Extract.ModelRPS),
			CallTimeout: cfg.Models.Timeout,
			Logger:      logger,
		}
	}

	embedder := lsslog.NewLoggingEmbedder(gemini.NewEmbedder(client, cfg.Models.Embedding), logger)
	vectors := sqlite.NewVectorService(m.DB)

	switch cmd {
	case "embed", "run", "serve":
		counter, err := gemini.NewTokenCounter(cfg.Models.Tokenizer)
		if err != nil {
			return fmt.Errorf("failed to create token counter: %w", err)
		}
		deps.Indexer = &index.Indexer{
			Pages:       deps.Pages,
			Extractions: deps.Extractions,
			Chunker:     goldmark.NewChunker(counter),
			Embedder:    embedder,
			Vectors:     vectors,
			Tracker:     sqlite.NewEmbedTracker(m.DB),
			Domains:     deps.Domains,
			CallTimeout: cfg.Models.Timeout,
			Logger:      logger,
		}
	}

	switch cmd {
	case "search", "ask", "chat", "serve", "mcp":
		deps.Retriever = &retrieve.Engine{
			Embedder:    embedder,
			Vectors:     vectors,
			Synthesizer: lsslog.NewLoggingSynthesizer(gemini.NewSynthesizer(client, cfg.Models.Chat), logger),
			CallTimeout: cfg.Models.Timeout,
			Logger:      logger,
		}
	}
	return nil
}

// discovery builds the search engine drivers. Result pages go through a
// stealth browser when configured, otherwise through plain HTTP.
func (m *Main) discovery(deps *Dependencies, pageFetcher leadscout.Fetcher) (*discover.Engine, error) {
	cfg := m.Config.Discovery

	serpFetcher := pageFetcher
	if cfg.Browser {
		var opts []rod.ManagerOption
		if cfg.Headful {
			opts = append(opts, rod.WithHeadful())
		}
		f, err := rod.NewFetcher(rod.WithSettle(time.Second), rod.WithBrowserOptions(opts...))
		if err != nil {
			fmt.Fprintln(deps.Stderr, "Hint: Chrome or Chromium must be installed, or set discovery.browser to false")
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		m.closers = append(m.closers, f)
		serpFetcher = lsslog.NewLoggingFetcher(f, deps.Logger)
	}

	specs := goquery.Specs()
	var engines []leadscout.SearchEngine
	for _, name := range cfg.Engines {
		spec, ok := specs[strings.ToLower(name)]
		if !ok {
			return nil, leadscout.Errorf(leadscout.EINVALID, "unknown search engine %q", name)
		}
		engines = append(engines, lsslog.NewLoggingSearchEngine(goquery.NewSearchEngine(spec, serpFetcher), deps.Logger))
	}
	if len(engines) == 0 {
		return nil, leadscout.Errorf(leadscout.EINVALID, "no search engines configured")
	}

	return &discover.Engine{
		Engines: engines,
		Prober: &vet.SoftVetter{
			Fetcher:  pageFetcher,
			Detector: goquery.NewSignalDetector(),
			Cache:    sqlite.NewSoftVetService(m.DB),
		},
		Domains:     deps.Domains,
		Hits:        sqlite.NewHitService(m.DB),
		Parallelism: cfg.Parallelism,
		Pages:       cfg.Pages,
		Interval:    cfg.Interval,
		Jitter:      cfg.Jitter,
		MaxResults:  cfg.MaxResults,
		Blacklist:   cfg.Blacklist,
		Logger:      deps.Logger,
	}, nil
}

// limiter paces model calls at rps requests per second. Zero disables
// pacing.
func limiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// runner assembles the pipeline from whichever stages were wired.
func runner(deps *Dependencies) *pipeline.Runner {
	r := &pipeline.Runner{
		Generator:        deps.Generator,
		Domains:          deps.Domains,
		CrawlParallelism: deps.Config.Crawl.Parallel,
		Logger:           deps.Logger,
	}
	if deps.Discovery != nil {
		r.Discovery = deps.Discovery
	}
	if deps.Dedup != nil {
		r.Dedup = deps.Dedup
	}
	if deps.Vetter != nil {
		r.Vetter = deps.Vetter
	}
	if deps.Crawler != nil {
		r.Crawler = deps.Crawler
	}
	if deps.Extractor != nil {
		r.Extractor = deps.Extractor
	}
	if deps.Indexer != nil {
		r.Indexer = deps.Indexer
	}
	return r
}
