// Package linker discovers relationships between memory pairs:
// similarity, contradiction, supersession. Its output is the
// candidate link list the caller materializes onto a committed
// memory, plus the link graph used for connectivity queries.
package linker

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vkoven/membrain/internal/lexical"
	"github.com/vkoven/membrain/internal/types"
)

const (
	// MaxCandidates caps FindLinks output
	MaxCandidates = 10

	tagWeight     = 0.6
	contentWeight = 0.4

	// exclusive thresholds: a supersession or contradiction this
	// strong suppresses the weaker relationship checks for the pair
	supersedeExclusive  = 0.5
	contradictExclusive = 0.5

	resolvesMinTags = 3
	resolvesMinSim  = 0.25
	extendsMinSim   = 0.4
	relatedMinSim   = 0.25

	titlePrefixLen = 40
)

// antonymPairs flag opposite guidance when the two words land on
// opposite sides of a memory pair's rule+content text.
var antonymPairs = [][2]string{
	{"always", "never"},
	{"safe", "unsafe"},
	{"enable", "disable"},
	{"allow", "deny"},
	{"use", "avoid"},
	{"increase", "decrease"},
	{"before", "after"},
	{"works", "broken"},
	{"add", "remove"},
	{"sync", "async"},
}

// AntonymConflict reports whether the two texts land on opposite
// sides of any antonym pair.
func AntonymConflict(a, b string) bool {
	textA := strings.ToLower(a)
	textB := strings.ToLower(b)
	for _, pair := range antonymPairs {
		if (containsWord(textA, pair[0]) && containsWord(textB, pair[1])) ||
			(containsWord(textA, pair[1]) && containsWord(textB, pair[0])) {
			return true
		}
	}
	return false
}

// Similarity is a weighted Jaccard over tag sets (0.6) and content
// keyword sets (0.4), keywords extracted after stop-word removal.
func Similarity(a, b *types.Memory) float64 {
	tagSim := lexical.Jaccard(a.TagSet(), b.TagSet())
	kwSim := lexical.Jaccard(lexical.KeywordSet(a.Content), lexical.KeywordSet(b.Content))
	return tagWeight*tagSim + contentWeight*kwSim
}

// DetectContradiction scores how likely two memories give opposing
// guidance. Requires at least 2 shared tags; returns the strongest
// applicable signal, capped at 1.0.
func DetectContradiction(a, b *types.Memory) float64 {
	shared := lexical.SharedCount(a.TagSet(), b.TagSet())
	if shared < 2 {
		return 0
	}

	score := 0.0

	// Opposite outcome on the same topic: a pain and a win sharing
	// 3+ tags is a weak contradiction signal (usually the win
	// resolves the pain instead, which FindLinks prefers).
	if shared >= 3 && painWinPair(a, b) {
		score = 0.4
	}

	// Antonym guidance across the pair's rule+content text
	if AntonymConflict(a.Rule+" "+a.Content, b.Rule+" "+b.Content) {
		if score < 0.7 {
			score = 0.7
		}
	}

	// Same topic, different takeaway: matching title prefix with
	// diverging rule text
	if a.Rule != "" && b.Rule != "" &&
		normalizedPrefix(a.Title, 30) == normalizedPrefix(b.Title, 30) &&
		normalize(a.Rule) != normalize(b.Rule) {
		if score < 0.6 {
			score = 0.6
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// DetectSupersession scores how likely newMem replaces oldMem.
// Requires same type and a strictly newer creation time, then builds
// up from title similarity, tag overlap and content coverage. Weak
// title or tag signals short-circuit to 0.
func DetectSupersession(newMem, oldMem *types.Memory) float64 {
	if newMem.Type != oldMem.Type || !newMem.CreatedAt.After(oldMem.CreatedAt) {
		return 0
	}

	var score float64
	switch {
	case normalize(newMem.Title) == normalize(oldMem.Title):
		score = 0.6
	case normalizedPrefix(newMem.Title, titlePrefixLen) == normalizedPrefix(oldMem.Title, titlePrefixLen):
		score = 0.4
	default:
		return 0
	}

	newTags, oldTags := newMem.TagSet(), oldMem.TagSet()
	shared := lexical.SharedCount(newTags, oldTags)
	switch {
	case shared >= 3 || lexical.Jaccard(newTags, oldTags) >= 0.6:
		score += 0.3
	case shared >= 2:
		score += 0.15
	default:
		return 0
	}

	// Content coverage: the new memory should say at least half of
	// what the old one said
	oldKw := lexical.KeywordSet(oldMem.Content)
	if len(oldKw) > 0 {
		newKw := lexical.KeywordSet(newMem.Content)
		covered := lexical.SharedCount(oldKw, newKw)
		if float64(covered)/float64(len(oldKw)) >= 0.5 {
			score += 0.1
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Candidate is one proposed link from a new memory to an existing one
type Candidate struct {
	TargetID     string
	Relationship types.LinkRelationship
	Weight       float64
	Reason       string
}

// FindLinks proposes links from a new memory to the existing set.
// Supersession and contradiction are exclusive: a strong hit skips
// the weaker relationship checks for that pair. Returns at most
// MaxCandidates sorted by weight descending. Never links a memory to
// itself.
func FindLinks(newMem *types.Memory, existing []*types.Memory) []Candidate {
	var candidates []Candidate

	for _, old := range existing {
		if old.ID == newMem.ID || old.SupersededBy != "" {
			continue
		}

		if s := DetectSupersession(newMem, old); s >= supersedeExclusive {
			candidates = append(candidates, Candidate{
				TargetID:     old.ID,
				Relationship: types.LinkSupersedes,
				Weight:       s,
				Reason:       fmt.Sprintf("newer record on the same topic (%.2f)", s),
			})
			continue
		}

		if c := DetectContradiction(newMem, old); c >= contradictExclusive {
			candidates = append(candidates, Candidate{
				TargetID:     old.ID,
				Relationship: types.LinkContradicts,
				Weight:       c,
				Reason:       fmt.Sprintf("opposing guidance on shared tags (%.2f)", c),
			})
			continue
		}

		sim := Similarity(newMem, old)
		shared := lexical.SharedCount(newMem.TagSet(), old.TagSet())

		if painWinPair(newMem, old) && shared >= resolvesMinTags && sim >= resolvesMinSim {
			candidates = append(candidates, Candidate{
				TargetID:     old.ID,
				Relationship: types.LinkResolves,
				Weight:       capped(sim + 0.4),
				Reason:       fmt.Sprintf("pain/win pair on %d shared tags (sim %.2f)", shared, sim),
			})
			continue
		}

		if newMem.Type == old.Type && sim >= extendsMinSim {
			candidates = append(candidates, Candidate{
				TargetID:     old.ID,
				Relationship: types.LinkExtends,
				Weight:       sim,
				Reason:       fmt.Sprintf("same type, similarity %.2f", sim),
			})
			continue
		}

		if sim >= relatedMinSim {
			candidates = append(candidates, Candidate{
				TargetID:     old.ID,
				Relationship: types.LinkRelated,
				Weight:       sim,
				Reason:       fmt.Sprintf("topical overlap, similarity %.2f", sim),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Weight > candidates[j].Weight
	})
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return candidates
}

// ApplyLinks attaches candidates to a copy of the memory, skipping
// any (target, relationship) pair it already carries. Same target
// under a different relationship is kept.
func ApplyLinks(m *types.Memory, candidates []Candidate, now time.Time) *types.Memory {
	out := m.Clone()
	for _, c := range candidates {
		if out.HasLink(c.TargetID, c.Relationship) {
			continue
		}
		out.Links = append(out.Links, types.Link{
			TargetID:     c.TargetID,
			Relationship: c.Relationship,
			CreatedAt:    now,
		})
	}
	return out
}

func painWinPair(a, b *types.Memory) bool {
	return (a.Type == types.TypePain && b.Type == types.TypeWin) ||
		(a.Type == types.TypeWin && b.Type == types.TypePain)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizedPrefix(s string, n int) string {
	s = normalize(s)
	if len(s) > n {
		s = s[:n]
	}
	return s
}

func containsWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if strings.Trim(w, ".,!?;:'\"()") == word {
			return true
		}
	}
	return false
}

func capped(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
