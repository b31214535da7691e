package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/crawl"
	"github.com/fwojciec/leadscout/discover"
	"github.com/fwojciec/leadscout/index"
	"github.com/fwojciec/leadscout/pipeline"
	"github.com/fwojciec/leadscout/publicsuffix"
	"github.com/fwojciec/leadscout/vet"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ShutdownTimeout is how long Close waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

// Services used by the API. Every field of Server may be nil; the routes
// that need a missing service answer 501.
type (
	JobRunner interface {
		Start(ctx context.Context, kind leadscout.JobKind, target string, fn pipeline.JobFunc) (*leadscout.Job, error)
		Cancel(id string) error
	}
	PipelineRunner interface {
		Run(ctx context.Context, t pipeline.Trigger, report func(string)) (*pipeline.Report, error)
	}
	DomainCrawler interface {
		CrawlDomain(ctx context.Context, domain string) (*crawl.Result, error)
	}
	DomainExtractor interface {
		ExtractDomain(ctx context.Context, domain string) (*leadscout.ExtractionResult, error)
	}
	DomainIndexer interface {
		IndexDomain(ctx context.Context, domain string, force bool) (*index.Stats, error)
	}
	Revetter interface {
		Revet(ctx context.Context, names []string, t vet.Thresholds) ([]*vet.Outcome, error)
	}
	Retriever interface {
		Search(ctx context.Context, req leadscout.SearchRequest) ([]*leadscout.SearchHit, error)
		Ask(ctx context.Context, req leadscout.AskRequest) (*leadscout.Answer, error)
	}
	Discovery interface {
		Resume(engine string) error
		Attention() []discover.Attention
	}
)

// Server is the JSON API over the pipeline. Long operations run as jobs and
// return 202 with the job; clients poll GET /jobs/{id}.
type Server struct {
	server *http.Server
	ln     net.Listener
	router chi.Router

	Addr string

	JobService leadscout.JobService
	Jobs       JobRunner
	Pipeline   PipelineRunner
	Crawler    DomainCrawler
	Extractor  DomainExtractor
	Indexer    DomainIndexer
	Vetter     Revetter
	Retriever  Retriever
	Discovery  Discovery

	Logger *slog.Logger
}

// NewServer returns a Server with its routes registered.
func NewServer() *Server {
	s := &Server{server: &http.Server{}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.handleJobCreate)
		r.Get("/", s.handleJobList)
		r.Get("/{id}", s.handleJobView)
		r.Delete("/{id}", s.handleJobCancel)
	})
	r.Post("/domains/{domain}/{op}", s.handleDomainOp)
	r.Post("/revet", s.handleRevet)
	r.Post("/search", s.handleSearch)
	r.Post("/ask", s.handleAsk)
	r.Post("/discovery/{engine}/resume", s.handleResume)
	r.Get("/discovery/attention", s.handleAttention)

	s.router = r
	s.server.Handler = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Open starts listening on Addr and serves in the background.
func (s *Server) Open() (err error) {
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go func() {
		if err := s.server.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger().Error("http server stopped", "error", err)
		}
	}()
	return nil
}

// URL returns the base URL of a listening server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func(begin time.Time) {
			s.logger().Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
				"duration", time.Since(begin),
			)
		}(time.Now())
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleJobCreate(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil || s.Pipeline == nil {
		s.notConfigured(w, "pipeline")
		return
	}
	var t pipeline.Trigger
	if err := decode(r, &t); err != nil {
		s.Error(w, r, err)
		return
	}
	if err := t.Validate(); err != nil {
		s.Error(w, r, err)
		return
	}
	s.startJob(w, r, leadscout.JobPipeline, t.Industry, func(ctx context.Context, report func(string)) error {
		_, err := s.Pipeline.Run(ctx, t, report)
		return err
	})
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	if s.JobService == nil {
		s.notConfigured(w, "jobs")
		return
	}
	var filter leadscout.JobFilter
	q := r.URL.Query()
	if v := q.Get("kind"); v != "" {
		kind := leadscout.JobKind(v)
		filter.Kind = &kind
	}
	if v := q.Get("status"); v != "" {
		status := leadscout.JobStatus(v)
		filter.Status = &status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.Error(w, r, leadscout.Errorf(leadscout.EINVALID, "invalid limit %q", v))
			return
		}
		filter.Limit = n
	}
	jobs, err := s.JobService.FindJobs(r.Context(), filter)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*leadscout.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJobView(w http.ResponseWriter, r *http.Request) {
	if s.JobService == nil {
		s.notConfigured(w, "jobs")
		return
	}
	job, err := s.JobService.FindJobByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil {
		s.notConfigured(w, "jobs")
		return
	}
	if err := s.Jobs.Cancel(chi.URLParam(r, "id")); err != nil {
		s.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDomainOp(w http.ResponseWriter, r *http.Request) {
	domain, err := publicsuffix.Domain(chi.URLParam(r, "domain"))
	if err != nil {
		s.Error(w, r, err)
		return
	}
	if s.Jobs == nil {
		s.notConfigured(w, "jobs")
		return
	}

	switch op := chi.URLParam(r, "op"); op {
	case "crawl":
		if s.Crawler == nil {
			s.notConfigured(w, op)
			return
		}
		s.startJob(w, r, leadscout.JobCrawl, domain, func(ctx context.Context, report func(string)) error {
			res, err := s.Crawler.CrawlDomain(ctx, domain)
			if err != nil {
				return err
			}
			report(fmt.Sprintf("%s: %d pages stored, %d failed", res.Status, res.Stored, res.Failed))
			return nil
		})
	case "extract":
		if s.Extractor == nil {
			s.notConfigured(w, op)
			return
		}
		s.startJob(w, r, leadscout.JobExtract, domain, func(ctx context.Context, report func(string)) error {
			res, err := s.Extractor.ExtractDomain(ctx, domain)
			if err != nil {
				return err
			}
			report(fmt.Sprintf("%d products from %d pages", len(res.Products), res.Meta.PageCount))
			return nil
		})
	case "embed":
		if s.Indexer == nil {
			s.notConfigured(w, op)
			return
		}
		force := r.URL.Query().Get("force") == "true"
		s.startJob(w, r, leadscout.JobEmbed, domain, func(ctx context.Context, report func(string)) error {
			stats, err := s.Indexer.IndexDomain(ctx, domain, force)
			if err != nil {
				return err
			}
			report(fmt.Sprintf("%d chunks embedded, %d skipped, %d removed", stats.Embedded, stats.Skipped, stats.Removed))
			return nil
		})
	default:
		s.Error(w, r, leadscout.Errorf(leadscout.ENOTFOUND, "unknown domain operation %q", op))
	}
}

type revetRequest struct {
	Domains    []string       `json:"domains"`
	Thresholds vet.Thresholds `json:"thresholds"`
}

func (s *Server) handleRevet(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil || s.Vetter == nil {
		s.notConfigured(w, "revet")
		return
	}
	var req revetRequest
	if err := decode(r, &req); err != nil {
		s.Error(w, r, err)
		return
	}
	if len(req.Domains) == 0 {
		s.Error(w, r, leadscout.Errorf(leadscout.EINVALID, "domains required"))
		return
	}
	s.startJob(w, r, leadscout.JobRevet, fmt.Sprintf("%d domains", len(req.Domains)), func(ctx context.Context, report func(string)) error {
		outcomes, err := s.Vetter.Revet(ctx, req.Domains, req.Thresholds)
		if err != nil {
			return err
		}
		var accepted int
		for _, o := range outcomes {
			if o.State == leadscout.VetAccepted {
				accepted++
			}
		}
		report(fmt.Sprintf("%d of %d accepted", accepted, len(outcomes)))
		return nil
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.Retriever == nil {
		s.notConfigured(w, "search")
		return
	}
	var req leadscout.SearchRequest
	if err := decode(r, &req); err != nil {
		s.Error(w, r, err)
		return
	}
	hits, err := s.Retriever.Search(r.Context(), req)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	if hits == nil {
		hits = []*leadscout.SearchHit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.Retriever == nil {
		s.notConfigured(w, "ask")
		return
	}
	var req leadscout.AskRequest
	if err := decode(r, &req); err != nil {
		s.Error(w, r, err)
		return
	}
	answer, err := s.Retriever.Ask(r.Context(), req)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if s.Discovery == nil {
		s.notConfigured(w, "discovery")
		return
	}
	if err := s.Discovery.Resume(chi.URLParam(r, "engine")); err != nil {
		s.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttention(w http.ResponseWriter, r *http.Request) {
	if s.Discovery == nil {
		s.notConfigured(w, "discovery")
		return
	}
	pending := s.Discovery.Attention()
	if pending == nil {
		pending = []discover.Attention{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request, kind leadscout.JobKind, target string, fn pipeline.JobFunc) {
	job, err := s.Jobs.Start(r.Context(), kind, target, fn)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) notConfigured(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotImplemented, errorResponse{Error: what + " is not configured"})
}

type errorResponse struct {
	Error string `json:"error"`
}

// Error writes an error response. Internal errors are logged and their
// details hidden from the client.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := leadscout.ErrorCode(err), leadscout.ErrorMessage(err)
	if code == leadscout.EINTERNAL {
		s.logger().Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, ErrorStatusCode(code), errorResponse{Error: msg})
}

var codes = map[string]int{
	leadscout.ECONFLICT:  http.StatusConflict,
	leadscout.EINVALID:   http.StatusBadRequest,
	leadscout.ENOTFOUND:  http.StatusNotFound,
	leadscout.EINTERNAL:  http.StatusInternalServerError,
	leadscout.ETRANSIENT: http.StatusServiceUnavailable,
	leadscout.EPERMANENT: http.StatusBadGateway,
	leadscout.EMODEL:     http.StatusBadGateway,
	leadscout.ECHALLENGE: http.StatusServiceUnavailable,
	leadscout.ECORRUPT:   http.StatusInternalServerError,
}

// ErrorStatusCode maps an application error code to an HTTP status code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return leadscout.Errorf(leadscout.EINVALID, "invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
