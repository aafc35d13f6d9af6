package model

// Product is a catalogue entry. Immutable after load; owned by the knowledge store.
type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Price       float64           `json:"price"`
	Description string            `json:"description"`
	InStock     bool              `json:"in_stock"`
	Specs       map[string]string `json:"specs,omitempty"`
}

// FAQEntry pairs a customer question with its canned answer. Keywords widen
// the match surface beyond the question text itself.
type FAQEntry struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords,omitempty"`
}

// Policy is a store policy document. Topic is a short canonical tag such as
// "returns"; tags are not required to be unique and lookup returns the first
// exact match.
type Policy struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ContactInfo carries business contact and escalation metadata. At most one
// instance; the knowledge store tolerates a missing source and reports nil.
type ContactInfo struct {
	Hours              string   `json:"hours"`
	Email              string   `json:"email"`
	Phone              string   `json:"phone"`
	EscalationTriggers []string `json:"escalation_triggers,omitempty"`
	HandoffMessage     string   `json:"handoff_message"`
}
