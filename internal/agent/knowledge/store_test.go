package knowledge

import (
	"fmt"
	"os"
	"testing"

	"github.com/timberline-assist/server/internal/agent/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testStore() *Store {
	products := []model.Product{
		{ID: "p1", Name: "Premium Oak Worktop", Category: "worktops", Price: 149.99, Description: "Full-stave solid oak worktop", InStock: true},
		{ID: "p2", Name: "Black Walnut Worktop", Category: "worktops", Price: 289.99, Description: "Rich dark walnut worktop", InStock: true},
		{ID: "p3", Name: "Worktop Care Oil", Category: "care", Price: 12.99, Description: "Food-safe oil for timber surfaces", InStock: false},
	}
	faqs := []model.FAQEntry{
		{ID: "f1", Question: "Can you cut worktops to size?", Answer: "Yes, we offer a cut-to-size service.", Keywords: []string{"custom", "dimensions"}},
		{ID: "f2", Question: "Do you deliver nationwide?", Answer: "We deliver across mainland UK.", Keywords: []string{"delivery", "shipping"}},
	}
	policies := []model.Policy{
		{ID: "pol1", Topic: "returns", Title: "Returns Policy", Content: "Uncut worktops may be returned within 30 days for a full refund."},
		{ID: "pol2", Topic: "shipping", Title: "Shipping Policy", Content: "Free delivery on orders over £100."},
	}
	contact := &model.ContactInfo{Email: "hello@example.co.uk"}
	return New(products, faqs, policies, contact)
}

func TestSearchProductsMatchesSubstring(t *testing.T) {
	s := testStore()

	results := s.SearchProducts("oak")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Name != "Premium Oak Worktop" {
		t.Errorf("expected Premium Oak Worktop, got %q", results[0].Name)
	}
}

func TestSearchProductsBlankQuery(t *testing.T) {
	s := testStore()

	for _, q := range []string{"", "   ", "\t\n"} {
		if got := s.SearchProducts(q); len(got) != 0 {
			t.Errorf("blank query %q: expected no results, got %d", q, len(got))
		}
	}
}

func TestSearchIgnoresShortWords(t *testing.T) {
	s := testStore()

	// every word under 2 characters: nothing is long enough to match
	if got := s.SearchProducts("a i o"); len(got) != 0 {
		t.Errorf("expected no product results, got %d", len(got))
	}
	if got := s.SearchFAQs("a i o"); len(got) != 0 {
		t.Errorf("expected no faq results, got %d", len(got))
	}
}

func TestSearchProductsCap(t *testing.T) {
	products := make([]model.Product, 0, 25)
	for i := 0; i < 25; i++ {
		products = append(products, model.Product{
			ID:   fmt.Sprintf("p%d", i),
			Name: fmt.Sprintf("Oak Shelf %d", i),
		})
	}
	s := New(products, nil, nil, nil)

	results := s.SearchProducts("oak")
	if len(results) != 10 {
		t.Fatalf("expected results capped at 10, got %d", len(results))
	}
	// insertion order preserved
	if results[0].ID != "p0" || results[9].ID != "p9" {
		t.Errorf("expected first 10 products in insertion order, got %s..%s", results[0].ID, results[9].ID)
	}
}

func TestSearchFAQsKeywordsAndIdempotence(t *testing.T) {
	s := testStore()

	first := s.SearchFAQs("shipping options")
	if len(first) != 1 || first[0].ID != "f2" {
		t.Fatalf("expected keyword tag to match f2, got %+v", first)
	}

	second := s.SearchFAQs("shipping options")
	if len(second) != len(first) || second[0].ID != first[0].ID {
		t.Errorf("expected identical results on repeat query")
	}
}

func TestLookupPolicyExactTopic(t *testing.T) {
	s := testStore()

	p := s.LookupPolicy("returns")
	if p == nil || p.ID != "pol1" {
		t.Fatalf("expected pol1, got %+v", p)
	}

	// case-insensitive
	if p := s.LookupPolicy("RETURNS"); p == nil || p.ID != "pol1" {
		t.Errorf("expected case-insensitive topic match")
	}
}

func TestLookupPolicyKeywordFallback(t *testing.T) {
	s := testStore()

	// "refund" is neither a topic tag nor a title substring; falls through
	// to keyword search over content.
	p := s.LookupPolicy("refund")
	if p == nil || p.ID != "pol1" {
		t.Fatalf("expected content keyword fallback to find pol1, got %+v", p)
	}

	if p := s.LookupPolicy("cryptocurrency"); p != nil {
		t.Errorf("expected no policy, got %+v", p)
	}

	if p := s.LookupPolicy("   "); p != nil {
		t.Errorf("expected blank topic to yield nothing")
	}
}

func TestLoadMissingDirDegradesToEmpty(t *testing.T) {
	s := Load(t.TempDir())

	if got := s.SearchProducts("oak"); len(got) != 0 {
		t.Errorf("expected empty catalogue, got %d results", len(got))
	}
	if s.Contact() != nil {
		t.Errorf("expected nil contact info")
	}
	if p := s.LookupPolicy("returns"); p != nil {
		t.Errorf("expected no policies, got %+v", p)
	}
}

func TestLoadMalformedCollection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/products.json", `not json`)
	writeFile(t, dir+"/policies.json", `[{"id":"pol1","topic":"returns","title":"Returns Policy","content":"Refunds within 30 days."}]`)

	s := Load(dir)

	if got := s.SearchProducts("oak"); len(got) != 0 {
		t.Errorf("malformed products should degrade to empty, got %d", len(got))
	}
	if p := s.LookupPolicy("returns"); p == nil {
		t.Errorf("valid policies collection should still load")
	}
}
