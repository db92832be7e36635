// Package issues reads and writes the {"issues": [...]} document the ranking run consumes and
// produces.
package issues

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"issuerank/internal/domain"
	"issuerank/internal/errs"
)

const envelopeKey = "issues"

// Decode parses an issues document. A document without the issues key holds no issues; other
// top-level keys are ignored.
func Decode(data []byte) ([]domain.Item, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("top level must be an object, got %s", doc.Type)
	}
	list := doc.Get(envelopeKey)
	if !list.Exists() || list.Type == gjson.Null {
		return []domain.Item{}, nil
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%q must be an array", envelopeKey)
	}

	items := make([]domain.Item, 0, len(list.Array()))
	var decodeErr error
	list.ForEach(func(_, value gjson.Result) bool {
		it, err := domain.NewItem([]byte(value.Raw), len(items))
		if err != nil {
			decodeErr = err
			return false
		}
		items = append(items, it)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return items, nil
}

// Load reads the ranking input. Any failure is a configuration error: the run cannot start.
func Load(path string) ([]domain.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Configuration(fmt.Sprintf("cannot read issues file %s", path), "check --issues or issues_path", err)
	}
	items, err := Decode(data)
	if err != nil {
		return nil, errs.Configuration(fmt.Sprintf("malformed issues file %s", path), `expected {"issues": [ ... ]}`, err)
	}
	return items, nil
}

// LoadOutput reads a previously written ranking for summary-only runs.
func LoadOutput(path string) ([]domain.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Persistence(fmt.Sprintf("cannot read ranking output %s", path), err)
	}
	items, err := Decode(data)
	if err != nil {
		return nil, errs.Persistence(fmt.Sprintf("malformed ranking output %s", path), err)
	}
	return items, nil
}

// Encode renders items as the output document, indented by two spaces, rank equal to index.
func Encode(items []domain.Item) ([]byte, error) {
	if items == nil {
		items = []domain.Item{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		Issues []domain.Item `json:"issues"`
	}{items}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CheckWritable verifies that path can be created or replaced, without touching it.
func CheckWritable(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return errs.Persistence(fmt.Sprintf("output path %s is a directory", path), nil)
	}
	probe, err := os.CreateTemp(dirOf(path), ".issuerank-probe-*")
	if err != nil {
		return errs.Persistence(fmt.Sprintf("output location for %s is not writable", path), err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

// Save writes the output document through a temporary file and a rename, so readers never see
// a partial file.
func Save(path string, items []domain.Item) error {
	data, err := Encode(items)
	if err != nil {
		return errs.Persistence("encode ranked issues", err)
	}

	tmp, err := os.CreateTemp(dirOf(path), ".issuerank-*.json")
	if err != nil {
		return errs.Persistence(fmt.Sprintf("create temporary file for %s", path), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Persistence(fmt.Sprintf("write %s", path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.Persistence(fmt.Sprintf("sync %s", path), err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Persistence(fmt.Sprintf("close %s", path), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errs.Persistence(fmt.Sprintf("chmod %s", path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errs.Persistence(fmt.Sprintf("replace %s", path), err)
	}
	return nil
}

func dirOf(path string) string {
	if dir := filepath.Dir(path); dir != "" {
		return dir
	}
	return "."
}
