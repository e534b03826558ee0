package scorer

import (
	"strings"
	"testing"
	"time"

	"github.com/prepforge/curator/internal/types"
)

func richItem() *types.ContentItem {
	return &types.ContentItem{
		ID:   "Q-1",
		Text: "How does Go's scheduler multiplex goroutines onto OS threads? For example, what happens when a goroutine blocks on a syscall?",
		Answer: "The runtime parks the blocking M and hands its P to another thread, " +
			"so runnable goroutines keep executing. Use `runtime.GOMAXPROCS` to bound parallelism.",
		Tags:       []string{"go", "runtime", "concurrency"},
		Difficulty: "hard",
		Channel:    "backend",
		Status:     types.ContentActive,
	}
}

func TestScoreRichItem(t *testing.T) {
	score, details := Score(richItem())
	if score < DefaultMinScore {
		t.Errorf("well-formed item scored %d, below the %d gate", score, DefaultMinScore)
	}
	if details.Total != score {
		t.Errorf("details.Total = %d, score = %d", details.Total, score)
	}

	want := map[string]bool{
		"code_present":           false,
		"concrete_example":       false,
		"question_phrasing":      false,
		"answer_length_in_range": false,
		"tags_present":           false,
		"difficulty_set":         false,
		"channel_set":            false,
	}
	for _, s := range details.Signals {
		if _, ok := want[s.Name]; ok {
			want[s.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("expected signal %q to fire", name)
		}
	}
}

func TestScorePenalties(t *testing.T) {
	tests := []struct {
		name   string
		item   *types.ContentItem
		signal string
	}{
		{
			name:   "missing answer",
			item:   &types.ContentItem{Text: "Explain garbage collection in Go."},
			signal: "answer_missing",
		},
		{
			name:   "answer too short",
			item:   &types.ContentItem{Text: "Explain garbage collection in Go.", Answer: "tri-color"},
			signal: "answer_length_outside_range",
		},
		{
			name: "answer too long",
			item: &types.ContentItem{
				Text:   "Explain garbage collection in Go.",
				Answer: strings.Repeat("because the GC said so ", 20),
			},
			signal: "answer_length_outside_range",
		},
		{
			name:   "text too short",
			item:   &types.ContentItem{Text: "GC?"},
			signal: "text_too_short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, details := Score(tt.item)
			found := false
			for _, s := range details.Signals {
				if s.Name == tt.signal {
					found = true
					if s.Weight >= 0 {
						t.Errorf("signal %q should be a penalty, weight = %d", s.Name, s.Weight)
					}
				}
			}
			if !found {
				t.Errorf("expected signal %q to fire", tt.signal)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	bare := &types.ContentItem{Text: "?"}
	score, _ := Score(bare)
	if score < 0 || score > 100 {
		t.Errorf("score %d outside [0,100]", score)
	}

	rich := richItem()
	score, _ = Score(rich)
	if score < 0 || score > 100 {
		t.Errorf("score %d outside [0,100]", score)
	}
}

func TestScoreReferentiallyStable(t *testing.T) {
	item := richItem()
	first, _ := Score(item)
	for i := 0; i < 10; i++ {
		got, _ := Score(item)
		if got != first {
			t.Fatalf("call %d returned %d, first call returned %d", i, got, first)
		}
	}
}

func TestScoreIgnoresTimestamps(t *testing.T) {
	a := richItem()
	b := richItem()
	b.CreatedAt = time.Now().Add(-365 * 24 * time.Hour)
	b.UpdatedAt = time.Now()
	b.DuplicateChecked = true

	scoreA, _ := Score(a)
	scoreB, _ := Score(b)
	if scoreA != scoreB {
		t.Errorf("timestamps changed the score: %d vs %d", scoreA, scoreB)
	}
}

func TestScoreRewardsCode(t *testing.T) {
	plain := &types.ContentItem{
		Text:   "Explain how to reverse a linked list iteratively.",
		Answer: "Walk the list keeping prev and next pointers, relinking as you go.",
	}
	withCode := &types.ContentItem{
		Text:   "Explain how to reverse a linked list iteratively.",
		Answer: "Walk the list relinking as you go: `prev, cur = cur, cur.Next` at each step.",
	}

	plainScore, _ := Score(plain)
	codeScore, _ := Score(withCode)
	if codeScore <= plainScore {
		t.Errorf("code sample should raise the score: %d vs %d", codeScore, plainScore)
	}
}
