package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/timberline-assist/server/internal/agent/knowledge"
	"github.com/timberline-assist/server/internal/agent/model"
	logx "github.com/timberline-assist/server/pkg/logger"
)

// Keyword sets for knowledge-domain detection. Detection order is
// product > policy > FAQ and the first matching domain short-circuits, so a
// message mentioning both a product noun and "returns" gets the product
// branch. baseProductKeywords carries the domain nouns; catalogue nouns come
// from configuration.
var (
	baseProductKeywords = []string{"product", "price", "cost", "buy", "purchase", "stock", "available", "order"}

	policyKeywords = []string{"return", "refund", "shipping", "delivery", "warranty", "terms", "privacy", "policy", "discount"}

	faqKeywords = []string{"how", "what", "can i", "do you", "where", "when", "faq", "help"}
)

// Router decides which knowledge domains to consult for a raw utterance and
// assembles one formatted context block. It never calls the completion
// service itself.
type Router struct {
	store           *knowledge.Store
	currency        string
	productKeywords []string
}

func New(store *knowledge.Store, cfg model.RouterConfig) *Router {
	kws := append([]string(nil), baseProductKeywords...)
	for _, k := range strings.Split(cfg.ProductKeywords, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kws = append(kws, k)
		}
	}

	return &Router{
		store:           store,
		currency:        cfg.CurrencySymbol,
		productKeywords: kws,
	}
}

// Route returns the knowledge-context block for the utterance, or the empty
// string when no stored knowledge is relevant. The empty string is a
// sentinel, never an error.
func (r *Router) Route(query string) string {
	lowered := strings.ToLower(query)

	switch {
	case containsAny(lowered, r.productKeywords):
		if products := r.store.SearchProducts(query); len(products) > 0 {
			logx.Debug().Int("matches", len(products)).Msg("router: product branch")
			return r.formatProducts(products)
		}
	case containsAny(lowered, policyKeywords):
		if policy := r.store.LookupPolicy(query); policy != nil {
			logx.Debug().Str("topic", policy.Topic).Msg("router: policy branch")
			return formatPolicy(policy)
		}
	case containsAny(lowered, faqKeywords):
		if faqs := r.store.SearchFAQs(query); len(faqs) > 0 {
			logx.Debug().Int("matches", len(faqs)).Msg("router: faq branch")
			return formatFAQs(faqs)
		}
	}

	return r.combinedFallback(query)
}

func (r *Router) formatProducts(products []model.Product) string {
	var b strings.Builder
	b.WriteString("PRODUCT SEARCH RESULTS:\n")

	for _, p := range products {
		b.WriteString("\n- ")
		b.WriteString(p.Name)
		if p.Category != "" {
			b.WriteString(" (" + p.Category + ")")
		}
		b.WriteString("\n")
		if p.Description != "" {
			b.WriteString("  " + p.Description + "\n")
		}
		b.WriteString(fmt.Sprintf("  Price: %s | In stock: %s\n", r.formatPrice(p.Price), stockGlyph(p.InStock)))
		if len(p.Specs) > 0 {
			b.WriteString("  Specs: " + formatSpecs(p.Specs) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPolicy(p *model.Policy) string {
	var b strings.Builder
	b.WriteString("POLICY INFO:\n")
	b.WriteString(p.Title + "\n\n")
	b.WriteString(p.Content)
	return b.String()
}

func formatFAQs(faqs []model.FAQEntry) string {
	var b strings.Builder
	b.WriteString("FAQ RESULTS:\n")

	for i, f := range faqs {
		if i > 0 {
			b.WriteString("---\n")
		}
		b.WriteString("\nQ: " + f.Question + "\n")
		b.WriteString("A: " + f.Answer + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// combinedFallback runs all three searches unconditionally and concatenates
// a lower-detail summary: product names with bare prices, FAQ questions
// only, policy title only.
func (r *Router) combinedFallback(query string) string {
	products := r.store.SearchProducts(query)
	faqs := r.store.SearchFAQs(query)
	policy := r.store.LookupPolicy(query)

	if len(products) == 0 && len(faqs) == 0 && policy == nil {
		logx.Debug().Msg("router: no relevant information")
		return ""
	}

	var b strings.Builder
	if len(products) > 0 {
		b.WriteString("RELATED PRODUCTS:\n")
		for _, p := range products {
			b.WriteString("- " + p.Name + " (" + r.formatPrice(p.Price) + ")\n")
		}
	}
	if len(faqs) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("RELATED FAQS:\n")
		for _, f := range faqs {
			b.WriteString("- " + f.Question + "\n")
		}
	}
	if policy != nil {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("RELATED POLICY: " + policy.Title + "\n")
	}

	logx.Debug().Msg("router: combined fallback")
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) formatPrice(price float64) string {
	return fmt.Sprintf("%s%.2f", r.currency, price)
}

func stockGlyph(inStock bool) string {
	if inStock {
		return "✓"
	}
	return "✗"
}

func formatSpecs(specs map[string]string) string {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+specs[k])
	}
	return strings.Join(parts, ", ")
}

func containsAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
