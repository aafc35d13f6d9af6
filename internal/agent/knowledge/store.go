package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/timberline-assist/server/internal/agent/model"
	logx "github.com/timberline-assist/server/pkg/logger"
)

const (
	maxProductResults = 10
	maxFAQResults     = 5
)

// Store holds the typed knowledge collections. Constructed once at startup
// and shared read-only afterwards; it is never mutated between reloads.
type Store struct {
	products []model.Product
	faqs     []model.FAQEntry
	policies []model.Policy
	contact  *model.ContactInfo
}

// New builds a store from in-memory collections. Used by tests and by
// deployments that embed their catalogue.
func New(products []model.Product, faqs []model.FAQEntry, policies []model.Policy, contact *model.ContactInfo) *Store {
	return &Store{
		products: products,
		faqs:     faqs,
		policies: policies,
		contact:  contact,
	}
}

// Load populates the store from JSON files under dir. Each collection loads
// independently: a missing or malformed file degrades that collection to
// empty (nil for contact) and is logged, never fatal. Knowledge
// incompleteness must not stop the service.
func Load(dir string) *Store {
	s := &Store{}

	loadCollection(filepath.Join(dir, "products.json"), &s.products)
	loadCollection(filepath.Join(dir, "faqs.json"), &s.faqs)
	loadCollection(filepath.Join(dir, "policies.json"), &s.policies)

	var contact model.ContactInfo
	if loadCollection(filepath.Join(dir, "contact.json"), &contact) {
		s.contact = &contact
	}

	logx.Info().
		Int("products", len(s.products)).
		Int("faqs", len(s.faqs)).
		Int("policies", len(s.policies)).
		Bool("contact", s.contact != nil).
		Str("dir", dir).
		Msg("knowledge base loaded")

	return s
}

func loadCollection[T any](path string, dst *T) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		logx.Warn().Err(err).Str("path", path).Msg("knowledge source unavailable, collection degraded to empty")
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logx.Warn().Err(err).Str("path", path).Msg("knowledge source malformed, collection degraded to empty")
		var zero T
		*dst = zero
		return false
	}
	return true
}

// SearchProducts returns catalogue entries matching the query in insertion
// order, capped at 10. A blank query means "no query" and yields nothing.
func (s *Store) SearchProducts(query string) []model.Product {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	var matched []model.Product
	for _, p := range s.products {
		if matchesQuery(query, p.Name, p.Category, p.Description) {
			matched = append(matched, p)
			if len(matched) == maxProductResults {
				break
			}
		}
	}
	return matched
}

// SearchFAQs returns FAQ entries matching the query in insertion order,
// capped at 5. Keyword tags count towards the match surface.
func (s *Store) SearchFAQs(query string) []model.FAQEntry {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	var matched []model.FAQEntry
	for _, f := range s.faqs {
		fields := []string{f.Question, f.Answer}
		fields = append(fields, f.Keywords...)
		if matchesQuery(query, fields...) {
			matched = append(matched, f)
			if len(matched) == maxFAQResults {
				break
			}
		}
	}
	return matched
}

// LookupPolicy finds a policy by topic. Exact case-insensitive topic tag
// match or title substring match wins first; otherwise it falls back to the
// shared keyword search over title and content. Nil when nothing matches.
func (s *Store) LookupPolicy(topic string) *model.Policy {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}

	lower := strings.ToLower(topic)
	for i := range s.policies {
		p := &s.policies[i]
		if strings.ToLower(p.Topic) == lower || strings.Contains(strings.ToLower(p.Title), lower) {
			return p
		}
	}

	for i := range s.policies {
		p := &s.policies[i]
		if matchesQuery(topic, p.Title, p.Content) {
			return p
		}
	}
	return nil
}

// Contact returns the business contact metadata, nil when its source was absent.
func (s *Store) Contact() *model.ContactInfo {
	return s.contact
}

// matchesQuery is the shared search primitive: lower-case the query, split on
// whitespace, drop words shorter than 2 characters, and match if any
// surviving word is a substring of the concatenated searchable fields.
// Deliberately permissive (single-word OR, no ranking) to maximise recall on
// a small catalogue.
func matchesQuery(query string, fields ...string) bool {
	haystack := strings.ToLower(strings.Join(fields, " "))

	for _, word := range strings.Fields(strings.ToLower(query)) {
		if len(word) < 2 {
			continue
		}
		if strings.Contains(haystack, word) {
			return true
		}
	}
	return false
}
