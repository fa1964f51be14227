package types

import "time"

// MemoryType classifies what kind of record a memory is
type MemoryType string

const (
	TypePain         MemoryType = "pain"         // something that went wrong
	TypeWin          MemoryType = "win"          // something that worked
	TypeFact         MemoryType = "fact"         // plain knowledge
	TypeDecision     MemoryType = "decision"     // a choice that was made
	TypeArchitecture MemoryType = "architecture" // structural knowledge
	TypeReflection   MemoryType = "reflection"   // meta-observation
	TypeSkill        MemoryType = "skill"        // a learned capability
)

// Severity grades how much a memory matters when it fires
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// LinkRelationship is the type of a directed edge between two memories
type LinkRelationship string

const (
	LinkResolves    LinkRelationship = "resolves"
	LinkExtends     LinkRelationship = "extends"
	LinkRelated     LinkRelationship = "related"
	LinkContradicts LinkRelationship = "contradicts"
	LinkSupersedes  LinkRelationship = "supersedes"
)

// LinkWeight returns the fixed propagation weight for a relationship.
// Contradicts and supersedes carry weight in the graph but are excluded
// from positive propagation during retrieval.
func LinkWeight(rel LinkRelationship) float64 {
	switch rel {
	case LinkResolves:
		return 0.8
	case LinkExtends:
		return 0.6
	case LinkRelated:
		return 0.4
	case LinkContradicts:
		return 0.7
	case LinkSupersedes:
		return 0.9
	default:
		return 0
	}
}

// Link is a directed, typed reference from its owning memory to a target.
// The target is a soft reference: it may have been archived, so every
// traversal must tolerate a dangling TargetID.
type Link struct {
	TargetID     string           `json:"target_id"`
	Relationship LinkRelationship `json:"relationship"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Memory is the atomic unit of the engine
type Memory struct {
	ID       string     `json:"id"`
	Type     MemoryType `json:"type"`
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Rule     string     `json:"rule,omitempty"` // optional actionable takeaway
	Tags     []string   `json:"tags,omitempty"`
	Severity Severity   `json:"severity,omitempty"`

	SynapticStrength float64    `json:"synaptic_strength"` // starts at 1.0
	AccessCount      int        `json:"access_count"`
	LastAccessed     *time.Time `json:"last_accessed,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`

	Links        []Link `json:"links,omitempty"`
	SupersededBy string `json:"superseded_by,omitempty"`

	QualityScore float64 `json:"quality_score"` // 0-1, set by the quality gate
	Fingerprint  string  `json:"fingerprint,omitempty"`
	DecayExempt  bool    `json:"decay_exempt,omitempty"`
}

// Clone returns a deep copy so engine passes can return modified
// records without mutating the caller's snapshot.
func (m *Memory) Clone() *Memory {
	c := *m
	if m.LastAccessed != nil {
		t := *m.LastAccessed
		c.LastAccessed = &t
	}
	c.Tags = append([]string(nil), m.Tags...)
	c.Links = append([]Link(nil), m.Links...)
	return &c
}

// HasLink reports whether the memory already carries an edge with the
// same target and relationship. Same target with a different
// relationship is allowed and both are retained.
func (m *Memory) HasLink(targetID string, rel LinkRelationship) bool {
	for _, l := range m.Links {
		if l.TargetID == targetID && l.Relationship == rel {
			return true
		}
	}
	return false
}

// TagSet returns the memory's tags as a set
func (m *Memory) TagSet() map[string]bool {
	set := make(map[string]bool, len(m.Tags))
	for _, t := range m.Tags {
		set[t] = true
	}
	return set
}

// LastTouch returns lastAccessed when set, otherwise createdAt
func (m *Memory) LastTouch() time.Time {
	if m.LastAccessed != nil {
		return *m.LastAccessed
	}
	return m.CreatedAt
}

// ByID builds an id lookup over a snapshot. All cross-memory
// references go through a map like this; a missing id is skipped,
// never an error.
func ByID(memories []*Memory) map[string]*Memory {
	index := make(map[string]*Memory, len(memories))
	for _, m := range memories {
		index[m.ID] = m
	}
	return index
}

// ContextPhase describes how far along a working session is
type ContextPhase string

const (
	PhaseEarly ContextPhase = "early"
	PhaseMid   ContextPhase = "mid"
	PhaseLate  ContextPhase = "late"
)

// TagActivity tracks per-session firing of one tag
type TagActivity struct {
	Count   int       `json:"count"`
	LastHit time.Time `json:"last_hit"`
}

// MemoryTrace is the session-local access record for one memory.
// SynapticStrength here overrides the stored field for the duration
// of the session.
type MemoryTrace struct {
	Count            int       `json:"count"`
	LastAccessed     time.Time `json:"last_accessed"`
	SynapticStrength float64   `json:"synaptic_strength"`
}

// BrainState is the ephemeral per-session state threaded through
// retrieval. It is a value: Retrieve returns an updated copy and the
// caller persists it. There is no process-wide singleton.
type BrainState struct {
	MessageCount     int                    `json:"message_count"`
	SynapticActivity map[string]TagActivity `json:"synaptic_activity,omitempty"`
	MemoryTraces     map[string]MemoryTrace `json:"memory_traces,omitempty"`
	FiringFrequency  map[string]int         `json:"firing_frequency,omitempty"`
}

// Clone deep-copies the state so retrieval can return updates without
// touching the caller's copy.
func (s *BrainState) Clone() *BrainState {
	if s == nil {
		return &BrainState{}
	}
	c := &BrainState{MessageCount: s.MessageCount}
	if s.SynapticActivity != nil {
		c.SynapticActivity = make(map[string]TagActivity, len(s.SynapticActivity))
		for k, v := range s.SynapticActivity {
			c.SynapticActivity[k] = v
		}
	}
	if s.MemoryTraces != nil {
		c.MemoryTraces = make(map[string]MemoryTrace, len(s.MemoryTraces))
		for k, v := range s.MemoryTraces {
			c.MemoryTraces[k] = v
		}
	}
	if s.FiringFrequency != nil {
		c.FiringFrequency = make(map[string]int, len(s.FiringFrequency))
		for k, v := range s.FiringFrequency {
			c.FiringFrequency[k] = v
		}
	}
	return c
}

// Phase derives the context phase from the session message count
// against the two configured thresholds.
func (s *BrainState) Phase(midAt, lateAt int) ContextPhase {
	if s == nil || s.MessageCount < midAt {
		return PhaseEarly
	}
	if s.MessageCount < lateAt {
		return PhaseMid
	}
	return PhaseLate
}

// ArchiveEntry records one memory removed from the active set.
// The archive is append-only; restoring preserves the record verbatim
// apart from clearing SupersededBy and refreshing LastAccessed.
type ArchiveEntry struct {
	Memory         *Memory   `json:"memory"`
	Reason         string    `json:"reason"`
	ArchivedAt     time.Time `json:"archived_at"`
	ScoreAtArchive float64   `json:"score_at_archive"`
}

// RuleKind distinguishes how a learned rule was mined
type RuleKind string

const (
	RulePattern    RuleKind = "pattern"    // extracted from a tag cluster
	RuleResolution RuleKind = "resolution" // mined from a pain/win pair
)

// LearnedRule is a reusable behavioral rule synthesized by the rule
// learner from clusters of memories.
type LearnedRule struct {
	ID           string     `json:"id"`
	Kind         RuleKind   `json:"kind"`
	Type         MemoryType `json:"type"`
	Rule         string     `json:"rule"`
	Tags         []string   `json:"tags,omitempty"`
	Confidence   float64    `json:"confidence"`
	Observations int        `json:"observations"`
	SourceIDs    []string   `json:"source_ids,omitempty"`
	Promoted     bool       `json:"promoted"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
