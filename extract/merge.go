package extract

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fwojciec/leadscout"
)

// MergeProfiles folds per-batch profiles into one. The longest company name
// and description win, notes and contacts are unioned in order, and each
// social network keeps the first profile URL seen.
func MergeProfiles(domain string, profiles []*leadscout.CompanyProfile) *leadscout.CompanyProfile {
	merged := &leadscout.CompanyProfile{
		Domain:  domain,
		Notes:   []string{},
		Socials: map[string]string{},
		Contacts: leadscout.Contacts{
			Emails:    []string{},
			Phones:    []string{},
			Addresses: []string{},
		},
	}
	for _, p := range profiles {
		if p == nil {
			continue
		}
		if len(strings.TrimSpace(p.Company)) > len(merged.Company) {
			merged.Company = strings.TrimSpace(p.Company)
		}
		if len(strings.TrimSpace(p.Description)) > len(merged.Description) {
			merged.Description = strings.TrimSpace(p.Description)
		}
		merged.Notes = union(merged.Notes, p.Notes)
		merged.Contacts.Emails = union(merged.Contacts.Emails, p.Contacts.Emails)
		merged.Contacts.Phones = union(merged.Contacts.Phones, p.Contacts.Phones)
		merged.Contacts.Addresses = union(merged.Contacts.Addresses, p.Contacts.Addresses)
		if merged.Contacts.ContactPage == "" {
			merged.Contacts.ContactPage = strings.TrimSpace(p.Contacts.ContactPage)
		}
		for network, u := range p.Socials {
			network = strings.ToLower(strings.TrimSpace(network))
			u = strings.TrimSpace(u)
			if network == "" || u == "" {
				continue
			}
			if _, ok := merged.Socials[network]; !ok {
				merged.Socials[network] = u
			}
		}
	}
	return merged
}

func union(dst, src []string) []string {
	for _, s := range src {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}

// MergeProducts deduplicates products across batches and numbers them
// "<domain>_product_<n>" in first-seen order. The dedup key is the
// normalized (name, price), falling back to (name, url) and then the name.
// Products without a name are dropped.
func MergeProducts(domain string, lists [][]*leadscout.Product) []*leadscout.Product {
	seen := make(map[string]struct{})
	merged := []*leadscout.Product{}
	for _, list := range lists {
		for _, p := range list {
			if p == nil {
				continue
			}
			key, ok := productKey(p)
			if !ok {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			cp := *p
			cp.Domain = domain
			merged = append(merged, &cp)
		}
	}
	for i, p := range merged {
		p.ID = fmt.Sprintf("%s_product_%d", domain, i+1)
	}
	return merged
}

func productKey(p *leadscout.Product) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	price := strings.ToLower(strings.TrimSpace(p.Price))
	u := strings.TrimSpace(p.URL)
	switch {
	case name == "":
		return "", false
	case price != "":
		return name + "\x00price\x00" + price, true
	case u != "":
		return name + "\x00url\x00" + u, true
	}
	return name + "\x00none", true
}
