package query

import (
	"sort"
	"strings"

	"github.com/starford/codeintel/internal/models"
)

// Base scores of the fuzzy match sets.
const (
	ScoreExact           = 100
	ScoreCaseInsensitive = 90
	ScorePath            = 60
	ScoreKeyword         = 40
)

// Match types reported with fuzzy results.
const (
	MatchExact           = "exact"
	MatchCaseInsensitive = "exact-ci"
	MatchPath            = "path"
	MatchKeyword         = "keyword"
)

// Candidate is one fuzzy match.
type Candidate struct {
	Record    *Record
	Score     int
	MatchType string
}

func dedupeKey(r *Record) string {
	return r.ID + ":" + r.Category + ":" + r.Path
}

// fuzzy unions exact id, path substring and keyword hits. Each entity appears
// once, carrying the score of the first set that found it; the sets are
// visited in descending score order so that is also its highest score.
func (s *snapshot) fuzzy(symbol string) []Candidate {
	if !s.available() || symbol == "" {
		return nil
	}
	lower := strings.ToLower(symbol)
	seen := make(map[string]struct{})
	var out []Candidate
	add := func(r *Record, score int, matchType string) {
		key := dedupeKey(r)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{Record: r, Score: score, MatchType: matchType})
	}

	exact := s.byID[symbol]
	if len(exact) == 0 {
		exact = s.byID[lower]
	}
	for _, r := range exact {
		add(r, ScoreExact, MatchExact)
	}
	if len(exact) == 0 {
		ids := make([]string, 0, len(s.byID))
		for id := range s.byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if strings.ToLower(id) != lower {
				continue
			}
			for _, r := range s.byID[id] {
				add(r, ScoreCaseInsensitive, MatchCaseInsensitive)
			}
		}
	}

	for _, p := range s.paths {
		if strings.Contains(strings.ToLower(p), lower) {
			add(s.byPath[p], ScorePath, MatchPath)
		}
	}

	for _, r := range s.byKeyword[lower] {
		add(r, ScoreKeyword, MatchKeyword)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if pa, pb := a.Record.Layer.Priority(), b.Record.Layer.Priority(); pa != pb {
			return pa < pb
		}
		return a.Record.Path < b.Record.Path
	})
	return out
}

// Hints narrow definition ranking.
type Hints struct {
	// Type prefers entities of this type.
	Type string
}

// Rank bonuses used by rank.
const (
	bonusExact           = 100
	bonusCaseInsensitive = 90
	bonusType            = 50
	bonusLayerStep       = 10
)

// rankScore scores a record for symbol, independent of how it was found.
func rankScore(r *Record, symbol string, hints Hints) int {
	score := 0
	switch {
	case r.ID == symbol:
		score += bonusExact
	case strings.EqualFold(r.ID, symbol):
		score += bonusCaseInsensitive
	}
	if hints.Type != "" && r.Type == hints.Type {
		score += bonusType
	}
	if p := r.Layer.Priority(); p < len(models.Layers) {
		score += (len(models.Layers) - p) * bonusLayerStep
	}
	return score
}

// rank orders candidates for definition lookup: highest rank score first,
// ties broken by path.
func rank(candidates []Candidate, symbol string, hints Hints) []*Record {
	type scored struct {
		r     *Record
		score int
	}
	list := make([]scored, len(candidates))
	for i, c := range candidates {
		list[i] = scored{r: c.Record, score: rankScore(c.Record, symbol, hints)}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].r.Path < list[j].r.Path
	})
	out := make([]*Record, len(list))
	for i, s := range list {
		out[i] = s.r
	}
	return out
}
