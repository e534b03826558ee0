package types

import (
	"fmt"
	"strings"
	"time"
)

// WorkItem represents one unit of scheduled mutation work against a content item.
// Items move pending -> processing -> {completed|failed}; terminal states are
// immutable. At most one WorkItem may be processing for a given
// (item_type, item_id) at any time.
type WorkItem struct {
	ID          string     `json:"id"`
	ItemType    string     `json:"item_type"`
	ItemID      string     `json:"item_id"`
	Action      Action     `json:"action"`
	Priority    int        `json:"priority"` // 1 (highest) .. 10 (lowest)
	Status      WorkStatus `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	CreatedBy   string     `json:"created_by"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	RetriesLeft int        `json:"retries_left"`
	Result      string     `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Validate checks if the work item has valid field values
func (w *WorkItem) Validate() error {
	if strings.TrimSpace(w.ItemType) == "" {
		return fmt.Errorf("item_type is required")
	}
	if strings.TrimSpace(w.ItemID) == "" {
		return fmt.Errorf("item_id is required")
	}
	if !w.Action.IsValid() {
		return fmt.Errorf("invalid action: %s", w.Action)
	}
	if w.Priority < 1 || w.Priority > 10 {
		return fmt.Errorf("priority must be between 1 and 10 (got %d)", w.Priority)
	}
	if !w.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", w.Status)
	}
	if w.RetriesLeft < 0 {
		return fmt.Errorf("retries_left cannot be negative")
	}
	if strings.TrimSpace(w.CreatedBy) == "" {
		return fmt.Errorf("created_by is required")
	}
	return nil
}

// Terminal reports whether the work item is in a terminal state
func (w *WorkItem) Terminal() bool {
	return w.Status == WorkCompleted || w.Status == WorkFailed
}

// Action categorizes the kind of mutation a work item requests
type Action string

const (
	ActionCreate  Action = "create"
	ActionImprove Action = "improve"
	ActionDelete  Action = "delete"
	ActionVerify  Action = "verify"
	ActionEnrich  Action = "enrich"
)

// IsValid checks if the action value is valid
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionImprove, ActionDelete, ActionVerify, ActionEnrich:
		return true
	}
	return false
}

// AllActions lists every valid action, in declaration order
func AllActions() []Action {
	return []Action{ActionCreate, ActionImprove, ActionDelete, ActionVerify, ActionEnrich}
}

// WorkStatus represents the current state of a work item
type WorkStatus string

const (
	WorkPending    WorkStatus = "pending"
	WorkProcessing WorkStatus = "processing"
	WorkCompleted  WorkStatus = "completed"
	WorkFailed     WorkStatus = "failed"
)

// IsValid checks if the work status value is valid
func (s WorkStatus) IsValid() bool {
	switch s {
	case WorkPending, WorkProcessing, WorkCompleted, WorkFailed:
		return true
	}
	return false
}

// LedgerEntry is an immutable audit record of one content mutation.
// Entries are append-only: never updated, never deleted. Replaying an item's
// entries in id order reconstructs its full history.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	BotName     string    `json:"bot_name"`
	Action      Action    `json:"action"`
	ItemType    string    `json:"item_type"`
	ItemID      string    `json:"item_id"`
	BeforeState *string   `json:"before_state,omitempty"` // JSON snapshot, nil for creations
	AfterState  *string   `json:"after_state,omitempty"`  // JSON snapshot, nil for deletions
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunStatus represents the lifecycle state of a bot run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IsValid checks if the run status value is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunRunning, RunCompleted, RunFailed:
		return true
	}
	return false
}

// BotRun records one bot invocation's lifetime and aggregate counters.
// Counters must match the ledger entries produced during the run's window.
type BotRun struct {
	ID             string     `json:"id"`
	BotName        string     `json:"bot_name"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Status         RunStatus  `json:"status"`
	ItemsProcessed int        `json:"items_processed"`
	ItemsCreated   int        `json:"items_created"`
	ItemsUpdated   int        `json:"items_updated"`
	ItemsDeleted   int        `json:"items_deleted"`
	Summary        string     `json:"summary,omitempty"`
}

// Outcome classifies a completed work item for run counter attribution
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeDeleted Outcome = "deleted"
)

// IsValid checks if the outcome value is valid
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeCreated, OutcomeUpdated, OutcomeDeleted:
		return true
	}
	return false
}

// ContentStatus represents the visibility state of a content item
type ContentStatus string

const (
	ContentActive  ContentStatus = "active"
	ContentFlagged ContentStatus = "flagged"
	ContentDeleted ContentStatus = "deleted"
)

// IsValid checks if the content status value is valid
func (s ContentStatus) IsValid() bool {
	switch s {
	case ContentActive, ContentFlagged, ContentDeleted:
		return true
	}
	return false
}

// ContentItem is the canonical record for one interview-prep question.
// It is mutated only by the orchestrator acting on a claimed WorkItem;
// any other write path is a protocol violation.
type ContentItem struct {
	ID               string        `json:"id"`
	Text             string        `json:"text"`
	Answer           string        `json:"answer,omitempty"`
	Tags             []string      `json:"tags,omitempty"`
	Difficulty       string        `json:"difficulty,omitempty"`
	Channel          string        `json:"channel,omitempty"`
	RelevanceScore   int           `json:"relevance_score"`
	Status           ContentStatus `json:"status"`
	EmbeddingModel   string        `json:"embedding_model,omitempty"` // model version the cached vector was produced with
	DuplicateChecked bool          `json:"duplicate_checked"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Validate checks if the content item has valid field values
func (c *ContentItem) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if c.RelevanceScore < 0 || c.RelevanceScore > 100 {
		return fmt.Errorf("relevance_score must be between 0 and 100 (got %d)", c.RelevanceScore)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", c.Status)
	}
	return nil
}

// EnrichmentFields counts the non-empty enrichment fields on the item.
// Used as the metadata-completeness tie-break when resolving duplicates.
func (c *ContentItem) EnrichmentFields() int {
	n := 0
	if strings.TrimSpace(c.Answer) != "" {
		n++
	}
	if len(c.Tags) > 0 {
		n++
	}
	if strings.TrimSpace(c.Difficulty) != "" {
		n++
	}
	if strings.TrimSpace(c.Channel) != "" {
		n++
	}
	return n
}

// DuplicateCandidatePair is an ephemeral pairing produced during a dedup scan.
// Pairs are consumed immediately to enqueue a resolving work item.
type DuplicateCandidatePair struct {
	ItemA      string  `json:"item_a"`
	ItemB      string  `json:"item_b"`
	Similarity float64 `json:"similarity"`
	Verdict    string  `json:"verdict,omitempty"`
}

// Mutation describes one content-store write plus the ledger entry recording
// it. Storage backends must apply both in a single transaction so the ledger
// and content store never diverge for a committed mutation.
type Mutation struct {
	BotName  string
	Action   Action
	ItemType string
	ItemID   string
	Before   *ContentItem // nil for creations
	After    *ContentItem // nil for hard deletions (unused: deletes are soft)
	Reason   string
}
