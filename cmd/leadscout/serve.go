package main

import (
	"fmt"

	lshttp "github.com/fwojciec/leadscout/http"
	"github.com/fwojciec/leadscout/mcp"
	"github.com/fwojciec/leadscout/pipeline"
)

// Run executes the serve command. It blocks until the context is canceled,
// then cancels running jobs and shuts the server down.
func (c *ServeCmd) Run(deps *Dependencies) error {
	jobs := pipeline.NewJobs(deps.Jobs, deps.Logger)
	defer jobs.Close()

	s := lshttp.NewServer()
	s.Addr = deps.Config.Serve.Addr
	if c.Addr != "" {
		s.Addr = c.Addr
	}
	s.JobService = deps.Jobs
	s.Jobs = jobs
	s.Pipeline = runner(deps)
	s.Logger = deps.Logger
	if deps.Discovery != nil {
		s.Discovery = deps.Discovery
	}
	if deps.Crawler != nil {
		s.Crawler = deps.Crawler
	}
	if deps.Vetter != nil {
		s.Vetter = deps.Vetter
	}
	if deps.Extractor != nil {
		s.Extractor = deps.Extractor
	}
	if deps.Indexer != nil {
		s.Indexer = deps.Indexer
	}
	if deps.Retriever != nil {
		s.Retriever = deps.Retriever
	}

	if err := s.Open(); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stderr, "listening on %s\n", s.URL())

	<-deps.Ctx.Done()
	return s.Close()
}

// Run executes the mcp command.
func (c *MCPCmd) Run(deps *Dependencies) error {
	return mcp.NewServer(deps.Retriever, deps.Extractions).Run(deps.Ctx)
}
