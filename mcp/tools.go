package mcp

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/fwojciec/leadscout"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool defaults.
const (
	DefaultSearchLimit    = 5
	DefaultProductLimit   = 10
	DefaultCompanyLimit   = 5
	productDescriptionLen = 200
	companyDescriptionLen = 100
)

// SearchInput is the input of search_knowledge_base.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query"`
	Domain string `json:"domain,omitempty" jsonschema:"optional company domain to restrict results to; omit for a cross-company search"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results (default 5)"`
}

// SearchOutput is the output of search_knowledge_base.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// SearchResult is one retrieved chunk.
type SearchResult struct {
	Collection leadscout.Collection `json:"collection"`
	Domain     string               `json:"domain"`
	URL        string               `json:"url,omitempty"`
	Score      float64              `json:"score"`
	Text       string               `json:"text"`
}

// DomainInput is the input of get_company_profile.
type DomainInput struct {
	Domain string `json:"domain" jsonschema:"the company domain, e.g. example.com"`
}

// ProductsInput is the input of list_company_products.
type ProductsInput struct {
	Domain string `json:"domain" jsonschema:"the company domain"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of products to return (default 10)"`
}

// ProductsOutput is the output of list_company_products.
type ProductsOutput struct {
	Products []ProductSummary `json:"products"`
	Total    int              `json:"total_found"`
}

// ProductSummary is a product trimmed for a context window.
type ProductSummary struct {
	Name        string `json:"name"`
	Brand       string `json:"brand,omitempty"`
	Price       string `json:"price,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// CompaniesInput is the input of list_available_companies.
type CompaniesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of companies to return (default 5)"`
}

// CompaniesOutput is the output of list_available_companies.
type CompaniesOutput struct {
	Companies []CompanySummary `json:"companies"`
}

// CompanySummary identifies an extracted company.
type CompanySummary struct {
	Domain      string `json:"domain"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search_knowledge_base",
		Description: "Semantic search over crawled pages, products and company profiles. " +
			"Use it for questions the structured profile and product tools do not cover, " +
			"such as return policies, shipping regions or company history.",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_company_profile",
		Description: "Get the structured profile of a company: description, contacts, social media and notes.",
	}, s.handleProfile)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_company_products",
		Description: "List the products a company offers with name, price, category and a short description.",
	}, s.handleProducts)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_available_companies",
		Description: "List the most recently extracted companies. Use it to sample the market before comparing companies.",
	}, s.handleCompanies)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	req := leadscout.SearchRequest{Query: in.Query, TopK: cmp.Or(in.Limit, DefaultSearchLimit)}
	if in.Domain != "" {
		req.Filters = []leadscout.Filter{{Key: leadscout.FilterDomain, Value: in.Domain}}
	}
	hits, err := s.search.Search(ctx, req)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	out := SearchOutput{Results: make([]SearchResult, 0, len(hits)), Count: len(hits)}
	for _, h := range hits {
		out.Results = append(out.Results, SearchResult{
			Collection: h.Collection,
			Domain:     h.Metadata.Domain,
			URL:        h.Metadata.URL,
			Score:      h.Score,
			Text:       h.Text,
		})
	}
	return nil, out, nil
}

func (s *Server) handleProfile(ctx context.Context, _ *mcp.CallToolRequest, in DomainInput) (*mcp.CallToolResult, leadscout.CompanyProfile, error) {
	res, err := s.extraction(ctx, in.Domain)
	if err != nil {
		return nil, leadscout.CompanyProfile{}, err
	}
	if res.Profile == nil {
		return nil, leadscout.CompanyProfile{}, fmt.Errorf("no profile for %s", in.Domain)
	}
	return nil, *res.Profile, nil
}

func (s *Server) handleProducts(ctx context.Context, _ *mcp.CallToolRequest, in ProductsInput) (*mcp.CallToolResult, ProductsOutput, error) {
	res, err := s.extraction(ctx, in.Domain)
	if err != nil {
		return nil, ProductsOutput{}, err
	}
	limit := cmp.Or(in.Limit, DefaultProductLimit)
	out := ProductsOutput{Products: []ProductSummary{}, Total: len(res.Products)}
	for _, p := range res.Products[:min(limit, len(res.Products))] {
		out.Products = append(out.Products, ProductSummary{
			Name:        p.Name,
			Brand:       p.Brand,
			Price:       p.Price,
			Category:    p.Category,
			Description: truncate(p.Description, productDescriptionLen),
			URL:         p.URL,
		})
	}
	return nil, out, nil
}

func (s *Server) handleCompanies(ctx context.Context, _ *mcp.CallToolRequest, in CompaniesInput) (*mcp.CallToolResult, CompaniesOutput, error) {
	results, err := s.extractions.FindExtractions(ctx, leadscout.ExtractionFilter{})
	if err != nil {
		return nil, CompaniesOutput{}, err
	}
	slices.SortStableFunc(results, func(a, b *leadscout.ExtractionResult) int {
		return b.Meta.ExtractedAt.Compare(a.Meta.ExtractedAt)
	})
	limit := cmp.Or(in.Limit, DefaultCompanyLimit)
	out := CompaniesOutput{Companies: []CompanySummary{}}
	for _, r := range results[:min(limit, len(results))] {
		c := CompanySummary{Domain: r.Domain}
		if r.Profile != nil {
			c.Name = r.Profile.Company
			c.Description = truncate(r.Profile.Description, companyDescriptionLen)
		}
		out.Companies = append(out.Companies, c)
	}
	return nil, out, nil
}

func (s *Server) extraction(ctx context.Context, domain string) (*leadscout.ExtractionResult, error) {
	if domain == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "domain required")
	}
	res, err := s.extractions.FindExtraction(ctx, domain)
	if leadscout.ErrorCode(err) == leadscout.ENOTFOUND {
		return nil, fmt.Errorf("company %s not found", domain)
	}
	return res, err
}

// truncate cuts s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
