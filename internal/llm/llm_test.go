package llm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/prepforge/curator/internal/types"
)

type fakeMessages struct {
	calls    int
	failures int
	text     string
}

func (f *fakeMessages) New(_ context.Context, _ anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("overloaded")
	}
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: f.text},
		},
	}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialBackoff = time.Millisecond
	return cfg
}

func TestGenerateSuccess(t *testing.T) {
	fake := &fakeMessages{text: "generated question"}
	c := newClient(fake, testConfig())

	got, err := c.Generate(context.Background(), "write a question about slices")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "generated question" {
		t.Errorf("got %q", got)
	}
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	fake := &fakeMessages{failures: 2, text: "eventually"}
	c := newClient(fake, testConfig())

	got, err := c.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate should succeed after retries: %v", err)
	}
	if got != "eventually" || fake.calls != 3 {
		t.Errorf("got %q after %d calls", got, fake.calls)
	}
}

func TestGenerateExhaustsBudget(t *testing.T) {
	fake := &fakeMessages{failures: 100, text: "never"}
	cfg := testConfig()
	cfg.MaxRetries = 1
	c := newClient(fake, cfg)

	_, err := c.Generate(context.Background(), "p")
	if !types.IsTransient(err) {
		t.Fatalf("exhausted budget should be transient, got %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("made %d calls, want 2", fake.calls)
	}
}

func TestGenerateEmptyPromptRejected(t *testing.T) {
	c := newClient(&fakeMessages{text: "x"}, testConfig())
	_, err := c.Generate(context.Background(), "")
	if !types.IsValidation(err) {
		t.Fatalf("empty prompt should be a ValidationError, got %v", err)
	}
}

func TestGenerateNoTextContentIsTransient(t *testing.T) {
	fake := &fakeMessages{text: ""}
	cfg := testConfig()
	cfg.MaxRetries = 0
	c := newClient(fake, cfg)

	_, err := c.Generate(context.Background(), "p")
	if !types.IsTransient(err) {
		t.Fatalf("empty response should be transient, got %v", err)
	}
}
