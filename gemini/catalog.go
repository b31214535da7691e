package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwojciec/leadscout"
	"google.golang.org/genai"
)

var _ leadscout.CatalogModel = (*CatalogModel)(nil)

// CatalogModel implements leadscout.CatalogModel using Google Gemini.
type CatalogModel struct {
	client *genai.Client
	model  string
}

// NewCatalogModel creates a new CatalogModel. An empty model selects
// DefaultModel.
func NewCatalogModel(client *genai.Client, model string) *CatalogModel {
	return &CatalogModel{client: client, model: modelName(model)}
}

// Model returns the model name.
func (m *CatalogModel) Model() string { return m.model }

// ExtractProfile extracts the company profile from a batch of pages.
func (m *CatalogModel) ExtractProfile(ctx context.Context, domain, content string) (*leadscout.CompanyProfile, error) {
	text, err := generate(ctx, m.client, m.model, BuildProfilePrompt(domain, content), ProfileConfig())
	if err != nil {
		return nil, err
	}
	p, err := ParseProfile(text)
	if err != nil {
		return nil, err
	}
	p.Domain = domain
	return p, nil
}

// ExtractProducts extracts the industry's products from a batch of pages.
func (m *CatalogModel) ExtractProducts(ctx context.Context, domain, industry, content string) ([]*leadscout.Product, error) {
	text, err := generate(ctx, m.client, m.model, BuildProductsPrompt(industry, content), ProductsConfig())
	if err != nil {
		return nil, err
	}
	products, err := ParseProducts(text)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		p.Domain = domain
	}
	return products, nil
}

// socialNetworks are the profile fields requested from the model.
var socialNetworks = []string{"linkedin", "instagram", "twitter", "facebook", "youtube", "tiktok"}

// ProfileConfig returns the request config for profile extraction.
func ProfileConfig() *genai.GenerateContentConfig {
	socials := make(map[string]*genai.Schema, len(socialNetworks))
	for _, n := range socialNetworks {
		socials[n] = str("Profile URL or empty.")
	}
	return jsonConfig(
		"You extract company profiles from website content. Copy facts exactly as written and never invent contact details.",
		0.1,
		&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"company":     str("Full company name."),
				"description": str("What the company sells and how it operates."),
				"notes":       strs("Specific researched facts: differentiators, milestones, awards, values."),
				"main_contacts": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"email":        strs("Every email address in the content."),
						"phone":        strs("Phone numbers."),
						"address":      strs("Postal addresses."),
						"contact_page": str("Contact page URL or empty."),
					},
				},
				"social_media": {Type: genai.TypeObject, Properties: socials},
			},
			Required: []string{"company", "description"},
		},
	)
}

// BuildProfilePrompt builds the profile extraction prompt.
func BuildProfilePrompt(domain, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Extract the company profile of %s from its website content.\n\n", domain)
	sb.WriteString("Search carefully for ALL contact information: emails (anything shaped like *@*.*), phones, addresses and social media links.\n")
	sb.WriteString("Notes must be specific, factual insights that show the company was researched.\n\n")
	fmt.Fprintf(&sb, "<content>\n%s\n</content>", content)
	return sb.String()
}

// ParseProfile decodes a profile extraction response.
func ParseProfile(text string) (*leadscout.CompanyProfile, error) {
	var out struct {
		Company     string             `json:"company"`
		Description string             `json:"description"`
		Notes       []string           `json:"notes"`
		Contacts    leadscout.Contacts `json:"main_contacts"`
		Socials     map[string]string  `json:"social_media"`
	}
	if err := decodeJSON(text, &out); err != nil {
		return nil, err
	}
	p := &leadscout.CompanyProfile{
		Company:     strings.TrimSpace(out.Company),
		Description: strings.TrimSpace(out.Description),
		Notes:       out.Notes,
		Contacts:    out.Contacts,
		Socials:     make(map[string]string),
	}
	for n, u := range out.Socials {
		if u = strings.TrimSpace(u); u != "" {
			p.Socials[strings.ToLower(n)] = u
		}
	}
	return p, nil
}

// ProductsConfig returns the request config for product extraction.
func ProductsConfig() *genai.GenerateContentConfig {
	return jsonConfig(
		"You extract product catalogs from website content. Copy names, descriptions, specs, prices and reviews exactly as written; never summarize or paraphrase.",
		0.1,
		&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"products": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"brand":       str("Brand name if mentioned."),
							"name":        str("Exact product name."),
							"category":    str("Product category."),
							"price":       str("Price exactly as shown, with currency."),
							"description": str("Exact product description."),
							"image_url":   str("Product image URL."),
							"url":         str("Product page URL."),
							"specs": {
								Type:  genai.TypeArray,
								Items: &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{"key": str(""), "value": str("")}},
							},
							"reviews": strs("Customer reviews quoted exactly."),
						},
						Required: []string{"name"},
					},
				},
			},
			Required: []string{"products"},
		},
	)
}

// BuildProductsPrompt builds the product extraction prompt.
func BuildProductsPrompt(industry, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Extract ONLY products related to: %s\n\n", industry)
	fmt.Fprintf(&sb, "Ignore products not related to %s. Copy descriptions and specs exactly as written.\n", industry)
	sb.WriteString("Return an empty products array if no relevant products are found.\n\n")
	fmt.Fprintf(&sb, "<content>\n%s\n</content>", content)
	return sb.String()
}

// ParseProducts decodes a product extraction response. Both a bare array
// and an object with a products key are accepted, and specs may be given as
// an object or as key/value pairs.
func ParseProducts(text string) ([]*leadscout.Product, error) {
	type product struct {
		leadscout.Product
		Specs any `json:"specs"`
	}
	var items []product
	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, "[") {
		if err := decodeJSON(trimmed, &items); err != nil {
			return nil, err
		}
	} else {
		var out struct {
			Products []product `json:"products"`
		}
		if err := decodeJSON(text, &out); err != nil {
			return nil, err
		}
		items = out.Products
	}

	products := make([]*leadscout.Product, 0, len(items))
	for _, it := range items {
		p := it.Product
		p.Specs = nil
		switch s := it.Specs.(type) {
		case map[string]any:
			for k, v := range s {
				setSpec(&p, k, fmt.Sprint(v))
			}
		case []any:
			for _, e := range s {
				if kv, ok := e.(map[string]any); ok {
					setSpec(&p, fmt.Sprint(kv["key"]), fmt.Sprint(kv["value"]))
				}
			}
		}
		products = append(products, &p)
	}
	return products, nil
}

func setSpec(p *leadscout.Product, k, v string) {
	k, v = strings.TrimSpace(k), strings.TrimSpace(v)
	if k == "" || v == "" || k == "<nil>" || v == "<nil>" {
		return
	}
	if p.Specs == nil {
		p.Specs = make(map[string]string)
	}
	p.Specs[k] = v
}
