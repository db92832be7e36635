package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNewItemDerivesIdentity(t *testing.T) {
	items := MustItems(
		`{"id":"A-1","severityLevel":"HIGH"}`,
		`{"vulnerabilityId":"CVE-2024-0001"}`,
		`{"id":42}`,
		`{"id":"","title":"no id"}`,
	)

	assert.Equal(t, []string{"A-1", "CVE-2024-0001", "42", "Issue 3"}, IDs(items))
	assert.Equal(t, SeverityHigh, items[0].Severity())
	assert.Equal(t, SeverityUnknown, items[1].Severity())
	assert.Equal(t, "no id", items[3].Title())
}

func TestNewItemRejectsNonObjects(t *testing.T) {
	_, err := NewItem([]byte(`[1,2]`), 0)
	require.Error(t, err)
	_, err = NewItem([]byte(`{"id":`), 1)
	require.Error(t, err)
}

func TestTitlePrefersMessage(t *testing.T) {
	it := MustItems(`{"message":"open bucket","title":"S3"}`)[0]
	assert.Equal(t, "open bucket", it.Title())
}

func TestWithRecordDoesNotAliasTrail(t *testing.T) {
	base := MustItems(`{"id":"A"}`)[0].WithRecord(ComparisonRecord{ComparedWithID: "B"})

	left := base.WithRecord(ComparisonRecord{ComparedWithID: "C"})
	right := base.WithRecord(ComparisonRecord{ComparedWithID: "D"})

	require.Len(t, base.Trail(), 1)
	assert.Equal(t, "C", left.Trail()[1].ComparedWithID)
	assert.Equal(t, "D", right.Trail()[1].ComparedWithID)
}

func TestMarshalJSONPreservesFieldsAndAddsAnnotations(t *testing.T) {
	it := MustItems(`{"id":"A","severityLevel":"LOW","extra":{"k":[1,2]}}`)[0]
	it = it.WithRecord(ComparisonRecord{ComparedWithID: "B", Reasoning: "because", WasHigherPriority: true})
	it = it.WithRating(1216)

	out, err := json.Marshal(it)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(out), `{"id":"A","severityLevel":"LOW","extra":{"k":[1,2]}`))
	assert.Equal(t, "B", gjson.GetBytes(out, "comparisonReasoning.0.comparedWithId").String())
	assert.True(t, gjson.GetBytes(out, "comparisonReasoning.0.wasHigherPriority").Bool())
	assert.False(t, gjson.GetBytes(out, "comparisonReasoning.0.fallback").Exists())
	assert.Equal(t, 1216.0, gjson.GetBytes(out, "elo").Float())
	assert.False(t, gjson.GetBytes(out, "score").Exists())
}

func TestMarshalJSONScoreAnnotations(t *testing.T) {
	it := MustItems(`{"id":"A","score":3}`)[0].WithScore(90, "internet facing")

	out, err := json.Marshal(it)
	require.NoError(t, err)
	assert.Equal(t, int64(90), gjson.GetBytes(out, "score").Int())
	assert.Equal(t, "internet facing", gjson.GetBytes(out, "reasoning").String())
	assert.False(t, gjson.GetBytes(out, "comparisonReasoning").Exists())
}

func TestEmptyTrailEncodesAsList(t *testing.T) {
	it := MustItems(`{"id":"A","comparisonReasoning":[{"comparedWithId":"Z"}]}`)[0]
	require.Len(t, it.Trail(), 1)

	out, err := json.Marshal(it.WithEmptyTrail())
	require.NoError(t, err)
	assert.Equal(t, "[]", gjson.GetBytes(out, "comparisonReasoning").Raw)
}

func TestPriorOutputAnnotationsAreReadable(t *testing.T) {
	it := MustItems(`{"id":"A","elo":1232.5,"score":77,"reasoning":"r"}`)[0]

	rating, ok := it.Rating()
	require.True(t, ok)
	assert.Equal(t, 1232.5, rating)
	score, ok := it.Score()
	require.True(t, ok)
	assert.Equal(t, 77, score)
	assert.Equal(t, "r", it.Reasoning())
}

func TestPromptJSONStripsAnnotations(t *testing.T) {
	it := MustItems(`{"id":"A","elo":1200,"comparisonReasoning":[],"severityLevel":"HIGH"}`)[0]

	rendered, err := it.PromptJSON()
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"id\": \"A\",\n  \"severityLevel\": \"HIGH\"\n}", rendered)
}

func TestParseSeverityIsExact(t *testing.T) {
	assert.Equal(t, SeverityCritical, ParseSeverity("CRITICAL"))
	assert.Equal(t, SeverityLow, ParseSeverity("LOW"))
	assert.Equal(t, SeverityUnknown, ParseSeverity("critical"))
	assert.Equal(t, SeverityUnknown, ParseSeverity(""))
	assert.Equal(t, "UNKNOWN", SeverityUnknown.String())
}
