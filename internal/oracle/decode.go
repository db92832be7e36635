package oracle

import (
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"issuerank/internal/errs"
)

const maxQuotedReply = 512

// Reply keys. The snake_case alias is what the bundled prompts historically asked for.
const (
	keyChoice      = "higherPriorityIssue"
	keyChoiceAlias = "higher_priority_issue"
	keyScore       = "score"
	keyReasoning   = "reasoning"
)

func decodeComparison(text string) (Comparison, error) {
	root, err := parseObject(text)
	if err != nil {
		return Comparison{}, err
	}
	choice := root.Get(keyChoice)
	if !choice.Exists() {
		choice = root.Get(keyChoiceAlias)
	}
	if !choice.Exists() {
		return Comparison{}, errs.Validation(fmt.Sprintf("missing %s (reply: %s)", keyChoice, quote(text)), nil)
	}
	if choice.Type != gjson.Number || (choice.Num != 1 && choice.Num != 2) {
		return Comparison{}, errs.Validation(fmt.Sprintf("%s must be 1 or 2, got %s", keyChoice, choice.Raw), nil)
	}
	reasoning, err := reasoningOf(root, text)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{FirstWins: choice.Num == 1, Reasoning: reasoning}, nil
}

func decodeScore(text string) (Score, error) {
	root, err := parseObject(text)
	if err != nil {
		return Score{}, err
	}
	value := root.Get(keyScore)
	if !value.Exists() {
		return Score{}, errs.Validation(fmt.Sprintf("missing %s (reply: %s)", keyScore, quote(text)), nil)
	}
	if value.Type != gjson.Number || value.Num != math.Trunc(value.Num) {
		return Score{}, errs.Validation(fmt.Sprintf("%s must be an integer, got %s", keyScore, value.Raw), nil)
	}
	if value.Num < MinScore || value.Num > MaxScore {
		return Score{}, errs.Validation(fmt.Sprintf("%s must be within [%d,%d], got %s", keyScore, MinScore, MaxScore, value.Raw), nil)
	}
	reasoning, err := reasoningOf(root, text)
	if err != nil {
		return Score{}, err
	}
	return Score{Value: int(value.Num), Reasoning: reasoning}, nil
}

func parseObject(text string) (gjson.Result, error) {
	if text == "" {
		return gjson.Result{}, errs.Validation("empty reply", nil)
	}
	if !gjson.Valid(text) {
		return gjson.Result{}, errs.Validation(fmt.Sprintf("reply is not valid JSON (reply: %s)", quote(text)), nil)
	}
	root := gjson.Parse(text)
	if !root.IsObject() {
		return gjson.Result{}, errs.Validation(fmt.Sprintf("reply must be a JSON object, got %s", root.Type), nil)
	}
	return root, nil
}

func reasoningOf(root gjson.Result, text string) (string, error) {
	reasoning := root.Get(keyReasoning)
	if reasoning.Type != gjson.String {
		return "", errs.Validation(fmt.Sprintf("%s must be a string (reply: %s)", keyReasoning, quote(text)), nil)
	}
	return reasoning.Str, nil
}

func quote(text string) string {
	if len(text) > maxQuotedReply {
		return fmt.Sprintf("%q... [truncated, total_length=%d]", text[:maxQuotedReply], len(text))
	}
	return fmt.Sprintf("%q", text)
}
