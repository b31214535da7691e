package index

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fwojciec/leadscout"
)

// ProductText renders a product as the text embedded for it.
func ProductText(p *leadscout.Product) string {
	var b strings.Builder
	line(&b, "Product", p.Name)
	line(&b, "Brand", p.Brand)
	line(&b, "Category", p.Category)
	line(&b, "Price", p.Price)
	line(&b, "Description", p.Description)
	if len(p.Specs) > 0 {
		keys := make([]string, 0, len(p.Specs))
		for k := range p.Specs {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		specs := make([]string, 0, len(keys))
		for _, k := range keys {
			specs = append(specs, k+": "+p.Specs[k])
		}
		line(&b, "Specs", strings.Join(specs, "; "))
	}
	for _, r := range p.Reviews {
		line(&b, "Review", r)
	}
	line(&b, "URL", p.URL)
	return b.String()
}

// ProfileText renders a company profile as the text embedded for it.
func ProfileText(p *leadscout.CompanyProfile) string {
	var b strings.Builder
	line(&b, "Company", p.Company)
	line(&b, "Domain", p.Domain)
	line(&b, "Description", p.Description)
	for _, n := range p.Notes {
		line(&b, "Note", n)
	}
	line(&b, "Email", strings.Join(p.Contacts.Emails, ", "))
	line(&b, "Phone", strings.Join(p.Contacts.Phones, ", "))
	line(&b, "Address", strings.Join(p.Contacts.Addresses, "; "))
	line(&b, "Contact page", p.Contacts.ContactPage)
	networks := make([]string, 0, len(p.Socials))
	for n := range p.Socials {
		networks = append(networks, n)
	}
	slices.Sort(networks)
	for _, n := range networks {
		line(&b, n, p.Socials[n])
	}
	return b.String()
}

func line(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
