package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Output keys written onto an issue by the ranking strategies.
const (
	FieldTrail     = "comparisonReasoning"
	FieldRating    = "elo"
	FieldScore     = "score"
	FieldReasoning = "reasoning"
)

var annotationFields = []string{FieldTrail, FieldRating, FieldScore, FieldReasoning}

// ComparisonRecord explains one pairwise judgment from the point of view of the item carrying it.
type ComparisonRecord struct {
	ComparedWithID    string `json:"comparedWithId"`
	Reasoning         string `json:"reasoning"`
	WasHigherPriority bool   `json:"wasHigherPriority"`
	Fallback          bool   `json:"fallback,omitempty"`
}

// Item is one issue from the input document. The original JSON object is kept verbatim;
// annotations live beside it and are merged in by MarshalJSON. Item is a value type: the
// With* methods return a new Item and never touch the receiver.
type Item struct {
	raw   []byte
	index int
	key   string

	trail    []ComparisonRecord
	hasTrail bool

	rating    float64
	hasRating bool

	score     int
	reasoning string
	hasScore  bool
}

// NewItem wraps a raw JSON object found at position index of the input sequence.
func NewItem(raw []byte, index int) (Item, error) {
	if !gjson.ValidBytes(raw) {
		return Item{}, fmt.Errorf("issue %d: invalid JSON", index)
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return Item{}, fmt.Errorf("issue %d: expected object, got %s", index, parsed.Type)
	}

	it := Item{
		raw:   append([]byte(nil), raw...),
		index: index,
		key:   deriveKey(parsed, index),
	}

	// Re-ranking a previous output keeps the trail it already carries.
	if prior := parsed.Get(FieldTrail); prior.IsArray() {
		var records []ComparisonRecord
		if err := json.Unmarshal([]byte(prior.Raw), &records); err == nil {
			it.trail = records
			it.hasTrail = true
		}
	}
	return it, nil
}

func deriveKey(parsed gjson.Result, index int) string {
	for _, field := range []string{"id", "vulnerabilityId"} {
		if v := parsed.Get(field); v.Exists() && v.Type != gjson.Null && v.String() != "" {
			return v.String()
		}
	}
	return fmt.Sprintf("Issue %d", index)
}

// ID is the stable identity: id, else vulnerabilityId, else "Issue <index>".
func (it Item) ID() string { return it.key }

// Index is the position of the item in the input sequence.
func (it Item) Index() int { return it.index }

func (it Item) Get(path string) gjson.Result { return gjson.GetBytes(it.raw, path) }

func (it Item) SeverityLabel() string {
	v := it.Get("severityLevel")
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return v.String()
}

func (it Item) Severity() Severity { return ParseSeverity(it.SeverityLabel()) }

func (it Item) Type() string { return it.Get("type").String() }

// Title prefers message and falls back to title.
func (it Item) Title() string {
	if msg := it.Get("message").String(); msg != "" {
		return msg
	}
	return it.Get("title").String()
}

func (it Item) Trail() []ComparisonRecord {
	return append([]ComparisonRecord(nil), it.trail...)
}

// Rating returns the in-run rating, or the elo field of a previously written output.
func (it Item) Rating() (float64, bool) {
	if it.hasRating {
		return it.rating, true
	}
	if v := it.Get(FieldRating); v.Type == gjson.Number {
		return v.Float(), true
	}
	return 0, false
}

func (it Item) Score() (int, bool) {
	if it.hasScore {
		return it.score, true
	}
	if v := it.Get(FieldScore); v.Type == gjson.Number {
		return int(v.Int()), true
	}
	return 0, false
}

func (it Item) Reasoning() string {
	if it.hasScore {
		return it.reasoning
	}
	return it.Get(FieldReasoning).String()
}

// WithRecord appends rec to a fresh copy of the trail.
func (it Item) WithRecord(rec ComparisonRecord) Item {
	trail := make([]ComparisonRecord, len(it.trail), len(it.trail)+1)
	copy(trail, it.trail)
	it.trail = append(trail, rec)
	it.hasTrail = true
	return it
}

// WithEmptyTrail drops any prior trail so the written output carries an empty list.
func (it Item) WithEmptyTrail() Item {
	it.trail = []ComparisonRecord{}
	it.hasTrail = true
	return it
}

func (it Item) WithRating(rating float64) Item {
	it.rating = rating
	it.hasRating = true
	return it
}

func (it Item) WithScore(score int, reasoning string) Item {
	it.score = score
	it.reasoning = reasoning
	it.hasScore = true
	return it
}

// PromptJSON renders the original fields, without ranking annotations, indented by two spaces.
func (it Item) PromptJSON() (string, error) {
	out := append([]byte(nil), it.raw...)
	var err error
	for _, field := range annotationFields {
		if !gjson.GetBytes(out, field).Exists() {
			continue
		}
		out, err = sjson.DeleteBytes(out, field)
		if err != nil {
			return "", fmt.Errorf("strip %s from %s: %w", field, it.key, err)
		}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, out, "", "  "); err != nil {
		return "", fmt.Errorf("indent %s: %w", it.key, err)
	}
	return buf.String(), nil
}

// MarshalJSON writes the original object with the annotations merged in. Existing keys keep
// their position; new keys are appended.
func (it Item) MarshalJSON() ([]byte, error) {
	out := append([]byte(nil), it.raw...)
	var err error
	if it.hasTrail {
		trail := it.trail
		if trail == nil {
			trail = []ComparisonRecord{}
		}
		encoded, mErr := json.Marshal(trail)
		if mErr != nil {
			return nil, mErr
		}
		if out, err = sjson.SetRawBytes(out, FieldTrail, encoded); err != nil {
			return nil, fmt.Errorf("set %s on %s: %w", FieldTrail, it.key, err)
		}
	}
	if it.hasRating {
		if out, err = sjson.SetBytes(out, FieldRating, it.rating); err != nil {
			return nil, fmt.Errorf("set %s on %s: %w", FieldRating, it.key, err)
		}
	}
	if it.hasScore {
		if out, err = sjson.SetBytes(out, FieldScore, it.score); err != nil {
			return nil, fmt.Errorf("set %s on %s: %w", FieldScore, it.key, err)
		}
		if out, err = sjson.SetBytes(out, FieldReasoning, it.reasoning); err != nil {
			return nil, fmt.Errorf("set %s on %s: %w", FieldReasoning, it.key, err)
		}
	}
	return out, nil
}

// IDs lists item identities in slice order.
func IDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID()
	}
	return ids
}

// MustItems builds items from JSON object literals. Intended for tests and fixtures.
func MustItems(objects ...string) []Item {
	items := make([]Item, len(objects))
	for i, obj := range objects {
		it, err := NewItem([]byte(obj), i)
		if err != nil {
			panic(err)
		}
		items[i] = it
	}
	return items
}
