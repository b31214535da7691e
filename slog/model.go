package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/leadscout"
)

var (
	_ leadscout.Classifier   = (*LoggingClassifier)(nil)
	_ leadscout.CatalogModel = (*LoggingCatalogModel)(nil)
	_ leadscout.Embedder     = (*LoggingEmbedder)(nil)
	_ leadscout.Synthesizer  = (*LoggingSynthesizer)(nil)
)

// LoggingClassifier wraps a Classifier with logging.
type LoggingClassifier struct {
	next   leadscout.Classifier
	logger *slog.Logger
}

// NewLoggingClassifier creates a new LoggingClassifier.
func NewLoggingClassifier(next leadscout.Classifier, logger *slog.Logger) *LoggingClassifier {
	return &LoggingClassifier{next: next, logger: logger}
}

// Classify delegates to the wrapped classifier and logs the verdict.
func (c *LoggingClassifier) Classify(ctx context.Context, domain, industry, content string) (cls *leadscout.Classification, err error) {
	defer func(begin time.Time) {
		var decision leadscout.Decision
		if cls != nil {
			decision = cls.Decision
		}
		c.logger.Info("classify",
			"domain", domain,
			"chars", len(content),
			"decision", decision,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return c.next.Classify(ctx, domain, industry, content)
}

// LoggingCatalogModel wraps a CatalogModel with logging.
type LoggingCatalogModel struct {
	next   leadscout.CatalogModel
	logger *slog.Logger
}

// NewLoggingCatalogModel creates a new LoggingCatalogModel.
func NewLoggingCatalogModel(next leadscout.CatalogModel, logger *slog.Logger) *LoggingCatalogModel {
	return &LoggingCatalogModel{next: next, logger: logger}
}

// Model delegates to the wrapped model.
func (m *LoggingCatalogModel) Model() string {
	return m.next.Model()
}

// ExtractProfile delegates to the wrapped model and logs the operation.
func (m *LoggingCatalogModel) ExtractProfile(ctx context.Context, domain, content string) (p *leadscout.CompanyProfile, err error) {
	defer func(begin time.Time) {
		m.logger.Debug("extract profile",
			"domain", domain,
			"chars", len(content),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return m.next.ExtractProfile(ctx, domain, content)
}

// ExtractProducts delegates to the wrapped model and logs the operation.
func (m *LoggingCatalogModel) ExtractProducts(ctx context.Context, domain, industry, content string) (products []*leadscout.Product, err error) {
	defer func(begin time.Time) {
		m.logger.Debug("extract products",
			"domain", domain,
			"chars", len(content),
			"count", len(products),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return m.next.ExtractProducts(ctx, domain, industry, content)
}

// LoggingEmbedder wraps an Embedder with logging.
type LoggingEmbedder struct {
	next   leadscout.Embedder
	logger *slog.Logger
}

// NewLoggingEmbedder creates a new LoggingEmbedder.
func NewLoggingEmbedder(next leadscout.Embedder, logger *slog.Logger) *LoggingEmbedder {
	return &LoggingEmbedder{next: next, logger: logger}
}

// Model delegates to the wrapped embedder.
func (e *LoggingEmbedder) Model() string {
	return e.next.Model()
}

// Embed delegates to the wrapped embedder and logs the batch.
func (e *LoggingEmbedder) Embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	defer func(begin time.Time) {
		e.logger.Debug("embed",
			"texts", len(texts),
			"vectors", len(vectors),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.Embed(ctx, texts)
}

// LoggingSynthesizer wraps a Synthesizer with logging.
type LoggingSynthesizer struct {
	next   leadscout.Synthesizer
	logger *slog.Logger
}

// NewLoggingSynthesizer creates a new LoggingSynthesizer.
func NewLoggingSynthesizer(next leadscout.Synthesizer, logger *slog.Logger) *LoggingSynthesizer {
	return &LoggingSynthesizer{next: next, logger: logger}
}

// Answer delegates to the wrapped synthesizer and logs the operation.
func (s *LoggingSynthesizer) Answer(ctx context.Context, question string, hits []*leadscout.SearchHit, window []leadscout.Message, summary string, followUps bool) (syn *leadscout.Synthesis, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("answer",
			"hits", len(hits),
			"window", len(window),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Answer(ctx, question, hits, window, summary, followUps)
}

// Summarize delegates to the wrapped synthesizer and logs the operation.
func (s *LoggingSynthesizer) Summarize(ctx context.Context, summary string, messages []leadscout.Message) (out string, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("summarize",
			"messages", len(messages),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Summarize(ctx, summary, messages)
}
