package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prepforge/curator/internal/llm"
	"github.com/prepforge/curator/internal/scorer"
	"github.com/prepforge/curator/internal/types"
)

// generatedQuestion is the JSON shape the generation prompts ask for.
type generatedQuestion struct {
	Text       string   `json:"text"`
	Answer     string   `json:"answer"`
	Tags       []string `json:"tags"`
	Difficulty string   `json:"difficulty"`
	Channel    string   `json:"channel"`
}

// DefaultBehaviors returns the standard dispatch table. Generation-backed
// actions use gen; verify and delete are pure and work without a provider.
func DefaultBehaviors(gen llm.Generator, minScore int) map[types.Action]Behavior {
	if minScore <= 0 {
		minScore = scorer.DefaultMinScore
	}
	table := map[types.Action]Behavior{
		types.ActionVerify: &VerifyBehavior{MinScore: minScore},
		types.ActionDelete: &DeleteBehavior{},
	}
	if gen != nil {
		table[types.ActionCreate] = &CreateBehavior{Generator: gen}
		table[types.ActionImprove] = &ImproveBehavior{Generator: gen}
		table[types.ActionEnrich] = &EnrichBehavior{Generator: gen}
	}
	return table
}

// CreateBehavior drafts a new question from the work item's reason, which
// carries the topic seed.
type CreateBehavior struct {
	Generator llm.Generator
}

func (b *CreateBehavior) Execute(ctx context.Context, work *types.WorkItem, item *types.ContentItem) (*types.ContentItem, *Result, error) {
	if item != nil {
		return nil, nil, &types.ValidationError{Reason: fmt.Sprintf("item %s already exists", work.ItemID)}
	}
	topic := strings.TrimSpace(work.Reason)
	if topic == "" {
		return nil, nil, &types.ValidationError{Reason: "create work item carries no topic seed"}
	}

	prompt := fmt.Sprintf(`Write one technical interview question about: %s

Respond with JSON only:
{"text": "the question", "answer": "a concise model answer (20-300 chars)", "tags": ["..."], "difficulty": "easy|medium|hard", "channel": "backend|frontend|systems|data"}`, topic)

	raw, err := b.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, nil, err
	}
	gen, err := llm.Decode[generatedQuestion](raw)
	if err != nil {
		return nil, nil, &types.ValidationError{Reason: fmt.Sprintf("unparseable generation output: %v", err)}
	}
	if strings.TrimSpace(gen.Text) == "" {
		return nil, nil, &types.ValidationError{Reason: "generation produced an empty question"}
	}

	now := time.Now()
	return &types.ContentItem{
			ID:         work.ItemID,
			Text:       gen.Text,
			Answer:     gen.Answer,
			Tags:       gen.Tags,
			Difficulty: gen.Difficulty,
			Channel:    gen.Channel,
			Status:     types.ContentActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, &Result{
			Summary: fmt.Sprintf("created question about %s", topic),
			Outcome: types.OutcomeCreated,
		}, nil
}

// ImproveBehavior rewrites an existing item's answer for clarity.
type ImproveBehavior struct {
	Generator llm.Generator
}

func (b *ImproveBehavior) Execute(ctx context.Context, work *types.WorkItem, item *types.ContentItem) (*types.ContentItem, *Result, error) {
	if item == nil {
		return nil, nil, &types.ValidationError{Reason: fmt.Sprintf("item %s does not exist", work.ItemID)}
	}

	prompt := fmt.Sprintf(`Improve the model answer for this interview question. Keep it concise (20-300 chars) and concrete.

Question: %s
Current answer: %s

Respond with JSON only: {"answer": "the improved answer"}`, item.Text, item.Answer)

	raw, err := b.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, nil, err
	}
	gen, err := llm.Decode[generatedQuestion](raw)
	if err != nil {
		return nil, nil, &types.ValidationError{Reason: fmt.Sprintf("unparseable generation output: %v", err)}
	}
	if strings.TrimSpace(gen.Answer) == "" {
		return nil, nil, &types.ValidationError{Reason: "generation produced an empty answer"}
	}

	updated := *item
	updated.Answer = gen.Answer
	return &updated, &Result{
		Summary: "improved answer",
		Outcome: types.OutcomeUpdated,
	}, nil
}

// EnrichBehavior fills in missing metadata (tags, difficulty, channel).
type EnrichBehavior struct {
	Generator llm.Generator
}

func (b *EnrichBehavior) Execute(ctx context.Context, work *types.WorkItem, item *types.ContentItem) (*types.ContentItem, *Result, error) {
	if item == nil {
		return nil, nil, &types.ValidationError{Reason: fmt.Sprintf("item %s does not exist", work.ItemID)}
	}

	prompt := fmt.Sprintf(`Classify this interview question.

Question: %s
Answer: %s

Respond with JSON only: {"tags": ["..."], "difficulty": "easy|medium|hard", "channel": "backend|frontend|systems|data"}`, item.Text, item.Answer)

	raw, err := b.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, nil, err
	}
	gen, err := llm.Decode[generatedQuestion](raw)
	if err != nil {
		return nil, nil, &types.ValidationError{Reason: fmt.Sprintf("unparseable generation output: %v", err)}
	}

	updated := *item
	if len(gen.Tags) > 0 {
		updated.Tags = gen.Tags
	}
	if gen.Difficulty != "" {
		updated.Difficulty = gen.Difficulty
	}
	if gen.Channel != "" {
		updated.Channel = gen.Channel
	}
	return &updated, &Result{
		Summary: "enriched metadata",
		Outcome: types.OutcomeUpdated,
	}, nil
}

// VerifyBehavior re-scores an item and settles its status against the gate.
// Pure: no provider calls.
type VerifyBehavior struct {
	MinScore int
}

func (b *VerifyBehavior) Execute(_ context.Context, work *types.WorkItem, item *types.ContentItem) (*types.ContentItem, *Result, error) {
	if item == nil {
		return nil, nil, &types.ValidationError{Reason: fmt.Sprintf("item %s does not exist", work.ItemID)}
	}

	score, _ := scorer.Score(item)
	updated := *item
	updated.RelevanceScore = score

	summary := fmt.Sprintf("verified, score %d", score)
	switch {
	case score < b.MinScore && updated.Status == types.ContentActive:
		updated.Status = types.ContentFlagged
		summary = fmt.Sprintf("flagged, score %d below gate %d", score, b.MinScore)
	case score >= b.MinScore && updated.Status == types.ContentFlagged:
		updated.Status = types.ContentActive
		summary = fmt.Sprintf("reinstated, score %d clears gate %d", score, b.MinScore)
	}

	return &updated, &Result{
		Summary: summary,
		Outcome: types.OutcomeUpdated,
	}, nil
}

// DeleteBehavior soft-deletes an item. The row and its ledger history remain;
// only the status changes.
type DeleteBehavior struct{}

func (b *DeleteBehavior) Execute(_ context.Context, work *types.WorkItem, item *types.ContentItem) (*types.ContentItem, *Result, error) {
	if item == nil {
		return nil, nil, &types.ValidationError{Reason: fmt.Sprintf("item %s does not exist", work.ItemID)}
	}
	if item.Status == types.ContentDeleted {
		return nil, nil, &types.ValidationError{Reason: fmt.Sprintf("item %s is already deleted", work.ItemID)}
	}

	updated := *item
	updated.Status = types.ContentDeleted
	return &updated, &Result{
		Summary: fmt.Sprintf("deleted: %s", work.Reason),
		Outcome: types.OutcomeDeleted,
	}, nil
}
