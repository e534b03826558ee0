// Package scorer rates interview-prep content items on a 0-100 relevance
// scale. Scoring is a pure function of the item's content fields: no side
// effects, no network calls, and the item's timestamps never contribute.
package scorer

import (
	"regexp"
	"strings"

	"github.com/prepforge/curator/internal/types"
)

// DefaultMinScore is the gate applied at creation time. Items scoring below
// it are flagged instead of published.
const DefaultMinScore = 40

const baseScore = 50

// Signal names one heuristic's contribution to a score.
type Signal struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// Details explains a score as the list of signals that produced it.
type Details struct {
	Base    int      `json:"base"`
	Signals []Signal `json:"signals,omitempty"`
	Total   int      `json:"total"`
}

var (
	codeBlockRe = regexp.MustCompile("(?s)```.*?```|`[^`\n]+`")
	exampleRe   = regexp.MustCompile(`(?i)\b(for example|e\.g\.|such as|consider|suppose|given)\b`)
	questionRe  = regexp.MustCompile(`(?i)^\s*(what|why|how|when|where|which|who|explain|describe|compare|implement|design|write)\b|\?\s*$`)
)

// Score computes the relevance score for a content item along with the
// signals that produced it. Only content fields are read; timestamps and
// bookkeeping fields never affect the result, so repeated calls on the same
// item always return the same score.
func Score(item *types.ContentItem) (int, Details) {
	d := Details{Base: baseScore}

	add := func(name string, weight int) {
		d.Signals = append(d.Signals, Signal{Name: name, Weight: weight})
	}

	body := item.Text + "\n" + item.Answer

	if codeBlockRe.MatchString(body) {
		add("code_present", 15)
	}
	if exampleRe.MatchString(body) {
		add("concrete_example", 10)
	}
	if questionRe.MatchString(item.Text) {
		add("question_phrasing", 5)
	}

	switch n := len(strings.TrimSpace(item.Answer)); {
	case n == 0:
		add("answer_missing", -10)
	case n < 20 || n > 300:
		add("answer_length_outside_range", -15)
	default:
		add("answer_length_in_range", 10)
	}

	if len(item.Tags) > 0 {
		add("tags_present", 5)
	}
	if strings.TrimSpace(item.Difficulty) != "" {
		add("difficulty_set", 5)
	}
	if strings.TrimSpace(item.Channel) != "" {
		add("channel_set", 5)
	}

	if n := len(strings.TrimSpace(item.Text)); n < 15 {
		add("text_too_short", -20)
	}

	total := d.Base
	for _, s := range d.Signals {
		total += s.Weight
	}
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	d.Total = total
	return total, d
}
