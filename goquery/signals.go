package goquery

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/leadscout"
)

// Platform names reported in SoftSignals.PlatformName.
const (
	PlatformShopify     = "shopify"
	PlatformWooCommerce = "woocommerce"
	PlatformBigCommerce = "bigcommerce"
	PlatformMagento     = "magento"
	PlatformWix         = "wix"
	PlatformSquarespace = "squarespace"
	PlatformPrestaShop  = "prestashop"
)

// platformFingerprints are checked in order against the lowercased page.
var platformFingerprints = []struct {
	name    string
	markers []string
}{
	{PlatformShopify, []string{"cdn.shopify.com", "shopify.theme", "myshopify.com"}},
	{PlatformWooCommerce, []string{"woocommerce", "wc-add-to-cart"}},
	{PlatformBigCommerce, []string{"cdn11.bigcommerce.com", "bigcommerce.com/s-"}},
	{PlatformMagento, []string{"mage/cookies", "magento_", "data-mage-init"}},
	{PlatformWix, []string{"wixstores", "wix-ecommerce"}},
	{PlatformSquarespace, []string{"sqs-add-to-cart", "squarespace-commerce"}},
	{PlatformPrestaShop, []string{"prestashop"}},
}

var cartMarkers = []string{
	"add to cart", "add to basket", "add-to-cart", "addtocart", "add_to_cart",
	"shopping cart", "shopping bag", "view basket", "checkout",
}

var cartPaths = regexp.MustCompile(`(?i)href=["'][^"']*/(cart|basket|checkout|shop|store|products?|collections)(/|["'?])`)

var productType = regexp.MustCompile(`"@type"\s*:\s*(\[[^\]]*)?"Product"`)

// SignalDetector finds cheap commerce signals in a homepage: product schema,
// cart markers and e-commerce platform fingerprints.
type SignalDetector struct{}

// NewSignalDetector creates a new SignalDetector.
func NewSignalDetector() *SignalDetector {
	return &SignalDetector{}
}

// Detect analyzes html. It never fails; unparseable input yields no signals.
func (d *SignalDetector) Detect(html string) leadscout.SoftSignals {
	var s leadscout.SoftSignals
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return s
	}
	lower := strings.ToLower(html)

	s.ProductSchema = d.hasProductSchema(doc)
	s.PlatformName = d.detectPlatform(doc, lower)
	s.Platform = s.PlatformName != ""
	s.Cart = d.hasCart(doc, html, lower)
	return s
}

func (d *SignalDetector) hasProductSchema(doc *goquery.Document) bool {
	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		found = productType.MatchString(sel.Text())
		return !found
	})
	if found {
		return true
	}
	if d.hasSelector(doc, `[itemtype*="schema.org/Product"]`) {
		return true
	}
	og, _ := doc.Find(`meta[property="og:type"]`).Attr("content")
	return strings.Contains(strings.ToLower(og), "product")
}

func (d *SignalDetector) detectPlatform(doc *goquery.Document, lower string) string {
	generator := strings.ToLower(doc.Find(`meta[name="generator"]`).AttrOr("content", ""))
	for _, p := range platformFingerprints {
		if strings.Contains(generator, p.name) {
			return p.name
		}
	}
	for _, p := range platformFingerprints {
		for _, m := range p.markers {
			if strings.Contains(lower, m) {
				return p.name
			}
		}
	}
	return ""
}

func (d *SignalDetector) hasCart(doc *goquery.Document, html, lower string) bool {
	for _, m := range cartMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	if d.hasSelector(doc, `form[action*="cart"], [class*="cart-icon"], [class*="minicart"], [data-cart]`) {
		return true
	}
	return cartPaths.MatchString(html)
}

func (d *SignalDetector) hasSelector(doc *goquery.Document, selector string) bool {
	return doc.Find(selector).Length() > 0
}
