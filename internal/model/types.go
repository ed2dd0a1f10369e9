// Package model defines the persisted and in-flight data types described in
// spec.md §3. It has no dependencies on other wenshape packages (besides
// chapterid) to avoid import cycles, the same role internal/types plays in
// the teacher.
package model

import "time"

// CharacterCard describes a character. Names are unique within a project.
type CharacterCard struct {
	Name        string   `yaml:"name" json:"name"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Description string   `yaml:"description" json:"description"`
	Stars       int      `yaml:"stars" json:"stars"`
}

// WorldCard describes a world entity, location, or rule-bearing concept.
type WorldCard struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Category    string   `yaml:"category,omitempty" json:"category,omitempty"`
	Rules       []string `yaml:"rules,omitempty" json:"rules,omitempty"`
	Immutable   bool     `yaml:"immutable,omitempty" json:"immutable,omitempty"`
	Stars       int      `yaml:"stars" json:"stars"`
}

// StyleCard is the project's singleton prose-style reference.
type StyleCard struct {
	Style string `yaml:"style" json:"style"`
}

// Normalize applies the stars default (1) and is called after every read of
// a card so callers never need to special-case a zero value.
func (c *CharacterCard) Normalize() {
	if c.Stars <= 0 {
		c.Stars = 1
	}
}

// Normalize applies the stars default (1).
func (c *WorldCard) Normalize() {
	if c.Stars <= 0 {
		c.Stars = 1
	}
}

// Fact is an append-only canonical statement extracted from a chapter.
type Fact struct {
	ID           string  `yaml:"id" json:"id"`
	Statement    string  `yaml:"statement" json:"statement"`
	Source       string  `yaml:"source" json:"source"`
	IntroducedIn string  `yaml:"introduced_in" json:"introduced_in"`
	Confidence   float64 `yaml:"confidence" json:"confidence"`
	Title        string  `yaml:"title,omitempty" json:"title,omitempty"`
	Content      string  `yaml:"content,omitempty" json:"content,omitempty"`
	SummaryRef   string  `yaml:"summary_ref,omitempty" json:"summary_ref,omitempty"`
}

// TimelineEvent records an event with its participants and location.
type TimelineEvent struct {
	Time         string   `yaml:"time" json:"time"`
	Event        string   `yaml:"event" json:"event"`
	Participants []string `yaml:"participants,omitempty" json:"participants,omitempty"`
	Location     string   `yaml:"location,omitempty" json:"location,omitempty"`
	Source       string   `yaml:"source" json:"source"`
}

// CharacterState is an append-only snapshot of a character's situation as
// of a given chapter. The "current" state is the most recently appended
// entry for that character.
type CharacterState struct {
	Character      string            `yaml:"character" json:"character"`
	Goals          []string          `yaml:"goals,omitempty" json:"goals,omitempty"`
	Injuries       []string          `yaml:"injuries,omitempty" json:"injuries,omitempty"`
	Inventory      []string          `yaml:"inventory,omitempty" json:"inventory,omitempty"`
	Relationships  map[string]string `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	Location       string            `yaml:"location,omitempty" json:"location,omitempty"`
	EmotionalState string            `yaml:"emotional_state,omitempty" json:"emotional_state,omitempty"`
	LastSeen       string            `yaml:"last_seen" json:"last_seen"`
}

// SceneBriefCharacter is a per-character entry within a SceneBrief.
type SceneBriefCharacter struct {
	Name           string   `yaml:"name" json:"name"`
	RelevantTraits []string `yaml:"relevant_traits,omitempty" json:"relevant_traits,omitempty"`
}

// TimelineContext situates a chapter relative to its neighbors.
type TimelineContext struct {
	Before  string `yaml:"before,omitempty" json:"before,omitempty"`
	Current string `yaml:"current,omitempty" json:"current,omitempty"`
	After   string `yaml:"after,omitempty" json:"after,omitempty"`
}

// SceneBrief is the archivist's structured description of a chapter's goal.
type SceneBrief struct {
	Chapter          string                `yaml:"chapter" json:"chapter"`
	Title            string                `yaml:"title" json:"title"`
	Goal             string                `yaml:"goal" json:"goal"`
	Characters       []SceneBriefCharacter `yaml:"characters,omitempty" json:"characters,omitempty"`
	TimelineContext  TimelineContext       `yaml:"timeline_context" json:"timeline_context"`
	WorldConstraints []string              `yaml:"world_constraints,omitempty" json:"world_constraints,omitempty"`
	Facts            []string              `yaml:"facts,omitempty" json:"facts,omitempty"`
	StyleReminder    string                `yaml:"style_reminder,omitempty" json:"style_reminder,omitempty"`
	Forbidden        []string              `yaml:"forbidden,omitempty" json:"forbidden,omitempty"`
}

// Draft is a single version of a chapter's prose.
type Draft struct {
	Chapter              string    `yaml:"chapter" json:"chapter"`
	Version              string    `yaml:"version" json:"version"` // "v1", "v2", ... or "current"
	Content              string    `yaml:"-" json:"-"`
	WordCount            int       `yaml:"word_count" json:"word_count"`
	PendingConfirmations []string  `yaml:"pending_confirmations,omitempty" json:"pending_confirmations,omitempty"`
	CreatedAt            time.Time `yaml:"created_at" json:"created_at"`
}

// ChapterSummary is the archivist's post-finalize synopsis of a chapter.
type ChapterSummary struct {
	Chapter               string   `yaml:"chapter" json:"chapter"`
	VolumeID              string   `yaml:"volume_id" json:"volume_id"`
	Title                 string   `yaml:"title" json:"title"`
	WordCount             int      `yaml:"word_count" json:"word_count"`
	KeyEvents             []string `yaml:"key_events,omitempty" json:"key_events,omitempty"`
	NewFacts              []string `yaml:"new_facts,omitempty" json:"new_facts,omitempty"`
	CharacterStateChanges []string `yaml:"character_state_changes,omitempty" json:"character_state_changes,omitempty"`
	OpenLoops             []string `yaml:"open_loops,omitempty" json:"open_loops,omitempty"`
	BriefSummary          string   `yaml:"brief_summary" json:"brief_summary"`
	OrderIndex            *int     `yaml:"order_index,omitempty" json:"order_index,omitempty"`
}

// VolumeSummary aggregates chapter summaries for one volume.
type VolumeSummary struct {
	VolumeID     string    `yaml:"volume_id" json:"volume_id"`
	BriefSummary string    `yaml:"brief_summary" json:"brief_summary"`
	KeyThemes    []string  `yaml:"key_themes,omitempty" json:"key_themes,omitempty"`
	MajorEvents  []string  `yaml:"major_events,omitempty" json:"major_events,omitempty"`
	ChapterCount int       `yaml:"chapter_count" json:"chapter_count"`
	UpdatedAt    time.Time `yaml:"updated_at" json:"updated_at"`
}

// Volume is an ordered grouping of chapters.
type Volume struct {
	ID      string `yaml:"id" json:"id"`
	Title   string `yaml:"title,omitempty" json:"title,omitempty"`
	Summary string `yaml:"summary,omitempty" json:"summary,omitempty"`
	Order   int    `yaml:"order" json:"order"`
}

// EvidenceType enumerates the kinds of evidence the indexer produces.
type EvidenceType string

const (
	EvidenceFact        EvidenceType = "fact"
	EvidenceSummary     EvidenceType = "summary"
	EvidenceCharacter   EvidenceType = "character"
	EvidenceWorldRule   EvidenceType = "world_rule"
	EvidenceWorldEntity EvidenceType = "world_entity"
	EvidenceWorld       EvidenceType = "world"
	EvidenceStyle       EvidenceType = "style"
	EvidenceTextChunk   EvidenceType = "text_chunk"
	EvidenceMemory      EvidenceType = "memory"
)

// Scope is the visibility tier of an evidence item.
type Scope string

const (
	ScopeChapter Scope = "chapter"
	ScopeVolume  Scope = "volume"
	ScopeGlobal  Scope = "global"
)

// EvidenceSource locates where an evidence item's text came from.
type EvidenceSource struct {
	Chapter string `json:"chapter,omitempty"`
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Card    string `json:"card,omitempty"`
	Index   int    `json:"index,omitempty"`
}

// EvidenceItem is one atomic, scorable piece of retrievable text.
type EvidenceItem struct {
	ID       string         `json:"id"`
	Type     EvidenceType   `json:"type"`
	Text     string         `json:"text"`
	Source   EvidenceSource `json:"source"`
	Scope    Scope          `json:"scope"`
	Entities []string       `json:"entities,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// IndexMeta tracks staleness for one BM25 index.
type IndexMeta struct {
	IndexName   string         `json:"index_name"`
	BuiltAt     time.Time      `json:"built_at"`
	ItemCount   int            `json:"item_count"`
	SourceMtime time.Time      `json:"source_mtime"`
	Details     map[string]any `json:"details,omitempty"`
}

// EvidenceSourceEntry summarizes a binding's evidence for one entity.
type EvidenceSourceEntry struct {
	Entity   string   `yaml:"entity" json:"entity"`
	Type     string   `yaml:"type" json:"type"`
	Count    int      `yaml:"count" json:"count"`
	Score    float64  `yaml:"score" json:"score"`
	Examples []string `yaml:"examples,omitempty" json:"examples,omitempty"`
}

// ChapterBinding is the set of entities resolved to appear in one chapter.
type ChapterBinding struct {
	Chapter       string                `yaml:"chapter" json:"chapter"`
	Characters    []string              `yaml:"characters,omitempty" json:"characters,omitempty"`
	WorldEntities []string              `yaml:"world_entities,omitempty" json:"world_entities,omitempty"`
	WorldRules    []string              `yaml:"world_rules,omitempty" json:"world_rules,omitempty"`
	Sources       []EvidenceSourceEntry `yaml:"sources,omitempty" json:"sources,omitempty"`
	DraftPath     string                `yaml:"draft_path,omitempty" json:"draft_path,omitempty"`
	BuiltAt       time.Time             `yaml:"built_at" json:"built_at"`
}

// CardSnapshot captures the character/world/style cards relevant to a
// memory pack at build time.
type CardSnapshot struct {
	Characters []string `json:"characters,omitempty"`
	World      []string `json:"world,omitempty"`
	Style      string   `json:"style,omitempty"`
}

// RetrievalRequest records one retrieval query issued during a research
// round, annotated with the round it belongs to.
type RetrievalRequest struct {
	Round   int      `json:"round"`
	Queries []string `json:"queries"`
	Types   []string `json:"types,omitempty"`
}

// SufficiencyReport is a round's self-assessment of retrieval adequacy.
type SufficiencyReport struct {
	Sufficient      bool     `json:"sufficient"`
	Reasoning       string   `json:"reasoning,omitempty"`
	MissingEntities []string `json:"missing_entities,omitempty"`
	NeedsUserInput  bool     `json:"needs_user_input"`
}

// ResearchTraceEntry records one round of the research loop.
type ResearchTraceEntry struct {
	Round        int      `json:"round"`
	Queries      []string `json:"queries"`
	Types        []string `json:"types,omitempty"`
	Count        int      `json:"count"`
	Hits         int      `json:"hits"`
	TopSources   []string `json:"top_sources,omitempty"`
	ExtraQueries []string `json:"extra_queries,omitempty"`
	StopReason   string   `json:"stop_reason,omitempty"`
	Note         string   `json:"note,omitempty"`
}

// MemoryPackPayload is the research product attached to a MemoryPack.
type MemoryPackPayload struct {
	WorkingMemory      string               `json:"working_memory"`
	EvidencePack       []EvidenceItem       `json:"evidence_pack"`
	Gaps               []string             `json:"gaps,omitempty"`
	UnresolvedGaps     []string             `json:"unresolved_gaps,omitempty"`
	SeedEntities       []string             `json:"seed_entities,omitempty"`
	RetrievalRequests  []RetrievalRequest   `json:"retrieval_requests,omitempty"`
	SufficiencyReport  SufficiencyReport    `json:"sufficiency_report"`
	ResearchTrace      []ResearchTraceEntry `json:"research_trace,omitempty"`
	ResearchStopReason string               `json:"research_stop_reason,omitempty"`
	Questions          []string             `json:"questions,omitempty"`
}

// MemoryPackSceneBrief is a thin projection of SceneBrief stored alongside
// the memory pack for quick display.
type MemoryPackSceneBrief struct {
	Title string `json:"title"`
	Goal  string `json:"goal"`
}

// MemoryPack is the cached, per-chapter research product.
type MemoryPack struct {
	Chapter      string               `json:"chapter"`
	BuiltAt      time.Time            `json:"built_at"`
	Source       string               `json:"source"`
	ChapterGoal  string               `json:"chapter_goal"`
	SceneBrief   MemoryPackSceneBrief `json:"scene_brief"`
	CardSnapshot CardSnapshot         `json:"card_snapshot"`
	Payload      MemoryPackPayload    `json:"payload"`
}

// SessionStatus enumerates the session orchestrator's state machine nodes.
type SessionStatus string

const (
	StatusIdle             SessionStatus = "idle"
	StatusGeneratingBrief  SessionStatus = "generating_brief"
	StatusWaitingUserInput SessionStatus = "waiting_user_input"
	StatusWritingDraft     SessionStatus = "writing_draft"
	StatusWaitingFeedback  SessionStatus = "waiting_feedback"
	StatusEditing          SessionStatus = "editing"
	StatusCompleted        SessionStatus = "completed"
	StatusError            SessionStatus = "error"
)

// SessionState is the ephemeral, in-memory state of one orchestrator run.
type SessionState struct {
	ProjectID     string        `json:"project_id"`
	Chapter       string        `json:"chapter"`
	Status        SessionStatus `json:"status"`
	Iteration     int           `json:"iteration"`
	QuestionRound int           `json:"question_round"`
	ResearchRound int           `json:"research_round"`
}

// ProgressEvent is a structured, per-session progress notification.
type ProgressEvent struct {
	Type      string         `json:"type"`
	ProjectID string         `json:"project_id"`
	Chapter   string         `json:"chapter,omitempty"`
	Status    string         `json:"status,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Round     int            `json:"round,omitempty"`
	Queries   []string       `json:"queries,omitempty"`
	Hits      int            `json:"hits,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// TraceEventType enumerates process-wide trace event kinds.
type TraceEventType string

const (
	TraceAgentStart      TraceEventType = "agent_start"
	TraceAgentEnd        TraceEventType = "agent_end"
	TraceToolCall        TraceEventType = "tool_call"
	TraceLLMRequest      TraceEventType = "llm_request"
	TraceContextSelect   TraceEventType = "context_select"
	TraceContextCompress TraceEventType = "context_compress"
	TraceHandoff         TraceEventType = "handoff"
	TraceHealthCheck     TraceEventType = "health_check"
)

// TraceEvent is a process-wide, agent-lifecycle trace record.
type TraceEvent struct {
	ID         string         `json:"id"`
	Type       TraceEventType `json:"type"`
	AgentName  string         `json:"agent_name"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	ParentID   string         `json:"parent_id,omitempty"`
}

// CardProposal is a candidate card extracted by the Extractor agent or an
// external collaborator (e.g. the fanfiction importer), pending user review.
type CardProposal struct {
	Type          string   `json:"type"` // "character" | "world"
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Aliases       []string `json:"aliases,omitempty"`
	Category      string   `json:"category,omitempty"`
	Rules         []string `json:"rules,omitempty"`
	Confidence    float64  `json:"confidence,omitempty"`
	SourceChapter string   `json:"source_chapter,omitempty"`
}

// ConflictKind enumerates the canon-conflict categories detected by C11.
type ConflictKind string

const (
	ConflictFact     ConflictKind = "fact"
	ConflictTimeline ConflictKind = "timeline"
	ConflictState    ConflictKind = "state"
)

// Conflict records one detected contradiction between new and existing canon.
type Conflict struct {
	Kind        ConflictKind `yaml:"kind" json:"kind"`
	Chapter     string       `yaml:"chapter" json:"chapter"`
	Description string       `yaml:"description" json:"description"`
	ExistingRef string       `yaml:"existing_ref,omitempty" json:"existing_ref,omitempty"`
	NewRef      string       `yaml:"new_ref,omitempty" json:"new_ref,omitempty"`
}
