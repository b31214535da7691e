package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/crawl"
	"github.com/fwojciec/leadscout/dedup"
	"github.com/fwojciec/leadscout/discover"
	"github.com/fwojciec/leadscout/extract"
	"github.com/fwojciec/leadscout/fs"
	"github.com/fwojciec/leadscout/index"
	"github.com/fwojciec/leadscout/retrieve"
	"github.com/fwojciec/leadscout/vet"
)

// Dependencies holds all services and configuration for command execution.
// Stage services are nil unless the running command needs them.
type Dependencies struct {
	Ctx    context.Context
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Config *Config
	Logger *slog.Logger

	Domains     leadscout.DomainService
	Vettings    leadscout.VettingService
	Pages       leadscout.PageService
	CrawlStates leadscout.CrawlStateService
	Extractions leadscout.ExtractionService
	Jobs        leadscout.JobService
	Exporter    *fs.Exporter

	Generator *discover.Generator
	Discovery *discover.Engine
	Dedup     *dedup.Deduplicator
	Vetter    *vet.Vetter
	Crawler   *crawl.Crawler
	Extractor *extract.Extractor
	Indexer   *index.Indexer
	Retriever *retrieve.Engine
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  string `short:"c" type:"path" help:"Config file (default ~/.leadscout/leadscout.yaml or LEADSCOUT_CONFIG)"`
	DB      string `type:"path" help:"Database path (overrides config and LEADSCOUT_DB)"`
	Verbose bool   `short:"v" help:"Log at debug level"`

	Discover DiscoverCmd `cmd:"" help:"Search engines for candidate domains"`
	Vet      VetCmd      `cmd:"" help:"Vet discovered domains"`
	Revet    RevetCmd    `cmd:"" help:"Re-run vetting with revised thresholds"`
	Crawl    CrawlCmd    `cmd:"" help:"Crawl accepted domains"`
	Extract  ExtractCmd  `cmd:"" help:"Extract company profiles and products"`
	Embed    EmbedCmd    `cmd:"" help:"Chunk and embed crawled content"`
	Search   SearchCmd   `cmd:"" help:"Search the knowledge base"`
	Ask      AskCmd      `cmd:"" help:"Ask a question about the indexed companies"`
	Chat     ChatCmd     `cmd:"" help:"Interactive conversation over the knowledge base"`
	Run      RunCmd      `cmd:"" help:"Run the whole pipeline"`
	Status   StatusCmd   `cmd:"" help:"Show domain counts per stage"`
	Serve    ServeCmd    `cmd:"" help:"Serve the HTTP job API"`
	MCP      MCPCmd      `cmd:"" name:"mcp" help:"Serve knowledge base tools over MCP stdio"`
	Export   ExportCmd   `cmd:"" help:"Write per-stage JSONL exports"`
}

// DiscoverCmd is the "discover" subcommand.
type DiscoverCmd struct {
	Seeds      []string `arg:"" help:"Seed keywords"`
	Negative   []string `short:"n" help:"Negative keywords (repeatable)"`
	TLD        []string `name:"tld" help:"Restrict queries to TLDs (repeatable)"`
	Region     []string `short:"r" help:"Region hints (repeatable)"`
	MaxQueries int      `help:"Maximum number of generated queries"`
	MaxResults int      `short:"m" help:"Maximum candidate domains"`
	DryRun     bool     `help:"Print generated queries without searching"`
}

// VetCmd is the "vet" subcommand.
type VetCmd struct {
	Domains []string `arg:"" optional:"" help:"Domains to vet (default: every undecided domain)"`
}

// RevetCmd is the "revet" subcommand.
type RevetCmd struct {
	Domains         []string `arg:"" help:"Domains to re-vet"`
	AcceptRelevance float64  `help:"Relevance at which a shop is accepted"`
	MinRelevance    float64  `help:"Relevance below which a non-shop is rejected"`
}

// CrawlCmd is the "crawl" subcommand.
type CrawlCmd struct {
	Domains  []string `arg:"" optional:"" help:"Domains to crawl (default: every accepted domain not yet crawled)"`
	MaxPages int      `help:"Page budget per domain"`
	MaxDepth int      `help:"Link depth limit"`
	Progress bool     `short:"p" help:"Print one line per page"`
}

// ExtractCmd is the "extract" subcommand.
type ExtractCmd struct {
	Domains []string `arg:"" optional:"" help:"Domains to extract (default: every crawled domain)"`
}

// EmbedCmd is the "embed" subcommand.
type EmbedCmd struct {
	Domains []string `arg:"" optional:"" help:"Domains to embed (default: every crawled domain)"`
	Force   bool     `short:"f" help:"Re-embed unchanged chunks"`
	DryRun  bool     `help:"Show index changes without embedding"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Query      string   `arg:"" help:"Search query"`
	Domain     string   `short:"d" help:"Restrict results to a domain"`
	Collection []string `help:"Collections to search: companies, products, raw_pages (repeatable)"`
	Limit      int      `short:"k" default:"5" help:"Number of results"`
	JSON       bool     `name:"json" help:"Print results as JSON"`
}

// AskCmd is the "ask" subcommand.
type AskCmd struct {
	Question string `arg:"" help:"Question to ask"`
	Domain   string `short:"d" help:"Restrict context to a domain"`
	Limit    int    `short:"k" default:"8" help:"Number of context chunks"`
}

// ChatCmd is the "chat" subcommand.
type ChatCmd struct {
	Domain string `short:"d" help:"Restrict context to a domain"`
	Window int    `default:"10" help:"Messages kept verbatim before summarizing"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct {
	Seeds         []string `arg:"" optional:"" help:"Seed keywords"`
	Industry      string   `short:"i" help:"Industry focus (overrides config)"`
	Negative      []string `short:"n" help:"Negative keywords (repeatable)"`
	TLD           []string `name:"tld" help:"Restrict queries to TLDs (repeatable)"`
	Region        []string `short:"r" help:"Region hints (repeatable)"`
	MaxResults    int      `short:"m" help:"Maximum candidate domains"`
	MaxPages      int      `help:"Page budget per domain"`
	MaxDepth      int      `help:"Link depth limit"`
	SkipDiscovery bool     `help:"Process stored undecided domains instead of searching"`
	Domains       []string `short:"d" help:"Process these domains instead of searching (repeatable)"`
}

// StatusCmd is the "status" subcommand.
type StatusCmd struct {
	Domains bool `short:"d" help:"List every domain with its stage"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr string `short:"a" help:"Listen address (overrides config)"`
}

// MCPCmd is the "mcp" subcommand.
type MCPCmd struct{}

// ExportCmd is the "export" subcommand.
type ExportCmd struct {
	Dir string `type:"path" help:"Output directory (overrides config data dir)"`
}
