package llm

import "testing"

type enrichment struct {
	Answer     string   `json:"answer"`
	Tags       []string `json:"tags"`
	Difficulty string   `json:"difficulty"`
}

func TestDecodeDirectJSON(t *testing.T) {
	got, err := Decode[enrichment](`{"answer": "use a mutex", "tags": ["go"], "difficulty": "easy"}`)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Answer != "use a mutex" || len(got.Tags) != 1 || got.Difficulty != "easy" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestDecodeFencedJSON(t *testing.T) {
	text := "```json\n{\"answer\": \"channels\", \"tags\": [\"go\", \"concurrency\"]}\n```"
	got, err := Decode[enrichment](text)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Answer != "channels" || len(got.Tags) != 2 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestDecodeTrailingComma(t *testing.T) {
	got, err := Decode[enrichment](`{"answer": "defer runs LIFO", "tags": ["go",],}`)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Answer != "defer runs LIFO" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestDecodeJSONInProse(t *testing.T) {
	text := `Here is the enrichment you asked for:

{"answer": "GOMAXPROCS bounds parallelism", "difficulty": "medium"}

Let me know if you need anything else.`
	got, err := Decode[enrichment](text)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Difficulty != "medium" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestDecodeArrayNotNarrowed(t *testing.T) {
	got, err := Decode[[]enrichment](`[{"answer": "a"}, {"answer": "b"}]`)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("array narrowed to %d elements", len(got))
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode[enrichment]("I could not produce JSON, sorry."); err == nil {
		t.Error("expected error for non-JSON output")
	}
	if _, err := Decode[enrichment](""); err == nil {
		t.Error("expected error for empty output")
	}
}
