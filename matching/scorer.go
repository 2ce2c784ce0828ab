package matching

import (
	"math"
	"strings"

	"boardgame-recommender/models"
)

// Kind classifies how a proposed title matched the catalog.
type Kind string

const (
	KindExact Kind = "exact"
	KindFuzzy Kind = "fuzzy"
	KindNone  Kind = "none"
)

// MatchResult is the outcome of reconciling one proposed title.
// Confidence is 1.0 iff Kind is exact and 0.0 iff Kind is none.
type MatchResult struct {
	ProposedTitle string       `json:"proposedTitle"`
	Game          *models.Game `json:"game,omitempty"`
	Confidence    float64      `json:"confidence"`
	Kind          Kind         `json:"kind"`
	Rule          string       `json:"rule,omitempty"`
}

// Accepted reports whether the match clears the given confidence threshold.
func (m MatchResult) Accepted(threshold float64) bool {
	return m.Kind != KindNone && m.Game != nil && m.Confidence >= threshold
}

// Options tunes the fuzzy rules. Zero values fall back to DefaultOptions.
type Options struct {
	MinOverlap           float64 // minimum word-overlap ratio
	MinSharedWords       int     // minimum shared significant words
	MinSingleWordLen     int     // shortest single-word candidate considered
	SingleWordConfidence float64 // fixed confidence for single-word hits
	PrefixBase           float64 // prefix confidence = PrefixBase + PrefixSpan*overlap
	PrefixSpan           float64
}

// DefaultOptions returns the standard matching parameters.
func DefaultOptions() Options {
	return Options{
		MinOverlap:           0.7,
		MinSharedWords:       2,
		MinSingleWordLen:     5,
		SingleWordConfidence: 0.75,
		PrefixBase:           0.7,
		PrefixSpan:           0.25,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinOverlap <= 0 {
		o.MinOverlap = d.MinOverlap
	}
	if o.MinSharedWords <= 0 {
		o.MinSharedWords = d.MinSharedWords
	}
	if o.MinSingleWordLen <= 0 {
		o.MinSingleWordLen = d.MinSingleWordLen
	}
	if o.SingleWordConfidence <= 0 {
		o.SingleWordConfidence = d.SingleWordConfidence
	}
	if o.PrefixBase <= 0 {
		o.PrefixBase = d.PrefixBase
	}
	if o.PrefixSpan <= 0 {
		o.PrefixSpan = d.PrefixSpan
	}
	return o
}

// maxFuzzy keeps fuzzy confidences strictly below an exact match.
const maxFuzzy = 0.99

// Scorer matches proposed titles against a catalog. The catalog's
// normalized forms are computed once, so a Scorer should be reused for
// every title proposed in one request.
type Scorer struct {
	opts    Options
	catalog []models.Game
	entries []entry
}

type entry struct {
	normalized string
	canonical  string
	words      []string
	lowerRaw   string
}

// NewScorer indexes the catalog for matching.
func NewScorer(catalog []models.Game, opts Options) *Scorer {
	s := &Scorer{
		opts:    opts.withDefaults(),
		catalog: catalog,
		entries: make([]entry, len(catalog)),
	}
	for i := range catalog {
		n := Normalize(catalog[i].Title)
		s.entries[i] = entry{
			normalized: n,
			canonical:  StripArticles(n),
			words:      SignificantWords(n),
			lowerRaw:   strings.ToLower(strings.TrimSpace(catalog[i].Title)),
		}
	}
	return s
}

// Match reconciles a single title against the catalog with DefaultOptions.
func Match(candidateTitle string, catalog []models.Game) MatchResult {
	return NewScorer(catalog, DefaultOptions()).Match(candidateTitle)
}

// Match applies the rules in strict precedence order; the first rule that
// produces a hit anywhere in the catalog wins, so a weak overlap match can
// never mask an exact one.
func (s *Scorer) Match(candidateTitle string) MatchResult {
	none := MatchResult{ProposedTitle: candidateTitle, Kind: KindNone}

	norm := Normalize(candidateTitle)
	if norm == "" {
		return none
	}
	canon := StripArticles(norm)
	words := SignificantWords(norm)

	// 1. exact
	for i := range s.entries {
		if s.entries[i].normalized == norm {
			return s.result(candidateTitle, i, 1.0, KindExact, "exact")
		}
	}

	// 2. exact ignoring leading articles
	for i := range s.entries {
		if s.entries[i].canonical == canon {
			return s.result(candidateTitle, i, 1.0, KindExact, "exact_without_article")
		}
	}

	// 3. ordered prefix
	if idx, conf, ok := s.bestPrefix(words, norm); ok {
		return s.result(candidateTitle, idx, conf, KindFuzzy, "prefix")
	}

	// 4. word overlap
	if idx, conf, ok := s.bestOverlap(words, norm); ok {
		return s.result(candidateTitle, idx, conf, KindFuzzy, "word_overlap")
	}

	// 5. single-word titles
	if idx, ok := s.singleWord(canon); ok {
		return s.result(candidateTitle, idx, s.opts.SingleWordConfidence, KindFuzzy, "single_word")
	}

	return none
}

func (s *Scorer) result(title string, idx int, conf float64, kind Kind, rule string) MatchResult {
	return MatchResult{
		ProposedTitle: title,
		Game:          &s.catalog[idx],
		Confidence:    conf,
		Kind:          kind,
		Rule:          rule,
	}
}

func (s *Scorer) bestPrefix(words []string, norm string) (int, float64, bool) {
	if len(words) < 2 {
		return 0, 0, false
	}

	best, bestConf, bestLen := -1, 0.0, 0.0
	for i := range s.entries {
		e := &s.entries[i]
		if len(e.words) < 2 {
			continue
		}
		if !isStrictPrefix(words, e.words) && !isStrictPrefix(e.words, words) {
			continue
		}
		overlap := overlapRatio(words, e.words)
		conf := math.Min(s.opts.PrefixBase+s.opts.PrefixSpan*overlap, maxFuzzy)
		ls := lengthSimilarity(norm, e.normalized)
		if conf > bestConf || (conf == bestConf && ls > bestLen) {
			best, bestConf, bestLen = i, conf, ls
		}
	}
	return best, bestConf, best >= 0
}

func (s *Scorer) bestOverlap(words []string, norm string) (int, float64, bool) {
	if len(words) == 0 {
		return 0, 0, false
	}

	best, bestConf, bestLen := -1, 0.0, 0.0
	for i := range s.entries {
		e := &s.entries[i]
		shared := sharedCount(words, e.words)
		if shared == 0 {
			continue
		}
		overlap := float64(shared) / float64(max(len(words), len(e.words)))
		if overlap < s.opts.MinOverlap {
			continue
		}
		longTitles := len(words) >= 3 && len(e.words) >= 3
		if shared < s.opts.MinSharedWords && !(longTitles && shared >= 3) {
			continue
		}
		conf := math.Min(overlap, maxFuzzy)
		ls := lengthSimilarity(norm, e.normalized)
		if conf > bestConf || (conf == bestConf && ls > bestLen) {
			best, bestConf, bestLen = i, conf, ls
		}
	}
	return best, bestConf, best >= 0
}

// singleWord is deliberately strict: a short word like "ra" must not match
// every title that happens to contain it.
func (s *Scorer) singleWord(canon string) (int, bool) {
	if strings.Contains(canon, " ") || len(canon) < s.opts.MinSingleWordLen {
		return 0, false
	}

	best := -1
	for i := range s.entries {
		e := &s.entries[i]
		hit := containsWord(e.normalized, canon) ||
			strings.HasPrefix(e.lowerRaw, canon+" ") ||
			strings.HasPrefix(e.lowerRaw, canon+":")
		if !hit {
			continue
		}
		// prefer the shortest title: "Azul" over "Azul: Summer Pavilion"
		if best < 0 || len(e.normalized) < len(s.entries[best].normalized) {
			best = i
		}
	}
	return best, best >= 0
}

func isStrictPrefix(short, long []string) bool {
	if len(short) >= len(long) {
		return false
	}
	for i := range short {
		if short[i] != long[i] {
			return false
		}
	}
	return true
}

func sharedCount(a, b []string) int {
	set := make(map[string]struct{}, len(b))
	for _, w := range b {
		set[w] = struct{}{}
	}
	seen := make(map[string]struct{}, len(a))
	n := 0
	for _, w := range a {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}

func overlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return float64(sharedCount(a, b)) / float64(max(len(a), len(b)))
}

func lengthSimilarity(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	return float64(min(la, lb)) / float64(max(la, lb))
}

func containsWord(normalized, word string) bool {
	for _, w := range strings.Fields(normalized) {
		if w == word {
			return true
		}
	}
	return false
}
