package leadscout

import (
	"context"
	"time"
)

// Contacts holds contact details found on a company site.
type Contacts struct {
	Emails      []string `json:"email"`
	Phones      []string `json:"phone"`
	Addresses   []string `json:"address"`
	ContactPage string   `json:"contact_page,omitempty"`
}

// CompanyProfile is the structured profile of the business behind a domain.
type CompanyProfile struct {
	Domain      string   `json:"domain"`
	Company     string   `json:"company"`
	Description string   `json:"description"`
	Notes       []string `json:"notes"`
	Contacts    Contacts `json:"main_contacts"`
	// Socials maps a network name (linkedin, instagram, ...) to a profile URL.
	Socials map[string]string `json:"social_media"`
}

// Product is one catalog entry extracted from a company site.
type Product struct {
	ID          string            `json:"product_id"`
	Domain      string            `json:"domain"`
	Brand       string            `json:"brand"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Price       string            `json:"price"`
	Description string            `json:"description"`
	ImageURL    string            `json:"image_url,omitempty"`
	URL         string            `json:"url,omitempty"`
	Specs       map[string]string `json:"specs,omitempty"`
	Reviews     []string          `json:"reviews,omitempty"`
}

// ExtractionMeta describes how an extraction result was produced.
type ExtractionMeta struct {
	Model       string    `json:"model"`
	PageCount   int       `json:"pageCount"`
	BatchCount  int       `json:"batchCount"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// ExtractionResult is the full structured extraction for one domain.
type ExtractionResult struct {
	Domain   string          `json:"domain"`
	Profile  *CompanyProfile `json:"profile"`
	Products []*Product      `json:"products"`
	Meta     ExtractionMeta  `json:"meta"`
}

// CatalogModel extracts structured facts from page content with a language
// model. Errors are reported with EMODEL.
type CatalogModel interface {
	// Model names the underlying model for extraction metadata.
	Model() string

	// ExtractProfile extracts a company profile from a batch of pages.
	ExtractProfile(ctx context.Context, domain, content string) (*CompanyProfile, error)

	// ExtractProducts extracts products relevant to industry from a batch of pages.
	ExtractProducts(ctx context.Context, domain, industry, content string) ([]*Product, error)
}

// ExtractionService persists extraction results. Saving replaces any prior
// result for the same domain.
type ExtractionService interface {
	SaveExtraction(ctx context.Context, result *ExtractionResult) error

	// FindExtraction returns the result for a domain.
	// Returns ENOTFOUND if the domain was never extracted.
	FindExtraction(ctx context.Context, domain string) (*ExtractionResult, error)

	// FindExtractions returns results ordered by domain.
	FindExtractions(ctx context.Context, filter ExtractionFilter) ([]*ExtractionResult, error)
}

// ExtractionFilter represents a filter for FindExtractions.
type ExtractionFilter struct {
	Domain *string

	Offset int
	Limit  int
}
