package registry

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// BM25 parameters for the description term-frequency component.
const (
	bm25K1     = 1.2
	bm25B      = 0.75
	bm25AvgDoc = 50.0
	bm25Scale  = 5.0
)

// Scoring weights for ranked search.
const (
	scoreExactName      = 100.0
	scoreSubstring      = 50.0
	scoreIntegration    = 30.0
	scoreNameToken      = 20.0
	scoreDescToken      = 10.0
	scoreIntegToken     = 15.0
	scorePopularityMult = 2.0
)

// Search ranks every registered tool against query and returns the top limit
// results by descending score. Ties keep registration order.
func (r *Registry) Search(query string, limit int) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return nil
	}
	tokens := tokenize(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []SearchResult
	for _, name := range r.order {
		rec := r.entries[name].record
		score := scoreTool(rec, query, tokens)
		if score > 0 {
			results = append(results, SearchResult{Tool: rec, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// SearchByRegex linear-scans name, qualified name and description against a
// user-supplied pattern. Invalid patterns yield an empty result, not an error.
func (r *Registry) SearchByRegex(pattern string, limit int) []*ToolRecord {
	re, err := regexp.Compile(pattern)
	if err != nil || limit <= 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*ToolRecord
	for _, name := range r.order {
		rec := r.entries[name].record
		if re.MatchString(rec.Name) || re.MatchString(rec.QualifiedName) || re.MatchString(rec.Description) {
			out = append(out, rec)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func scoreTool(rec *ToolRecord, query string, tokens []string) float64 {
	name := strings.ToLower(rec.Name)
	qualified := strings.ToLower(rec.QualifiedName)
	desc := strings.ToLower(rec.Description)
	integ := strings.ToLower(rec.IntegrationID)

	var score float64

	if name == query || qualified == query {
		score += scoreExactName
	} else if strings.Contains(name, query) || strings.Contains(qualified, query) {
		score += scoreSubstring
	}
	if strings.Contains(integ, query) {
		score += scoreIntegration
	}

	descTokens := tokenize(desc)
	descSet := make(map[string]int, len(descTokens))
	for _, t := range descTokens {
		descSet[t]++
	}

	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			score += scoreNameToken
		}
		if descSet[tok] > 0 {
			score += scoreDescToken
		}
		if strings.Contains(integ, tok) {
			score += scoreIntegToken
		}
	}

	score += bm25(tokens, descSet, len(descTokens)) * bm25Scale
	score += math.Log(float64(rec.UsageCount)+1) * scorePopularityMult

	return score
}

// bm25 computes the BM25-style term-frequency score of the query tokens over
// one description, with a fixed assumed average document length.
func bm25(tokens []string, docFreq map[string]int, docLen int) float64 {
	if docLen == 0 {
		return 0
	}
	norm := bm25K1 * (1 - bm25B + bm25B*float64(docLen)/bm25AvgDoc)

	var score float64
	for _, tok := range tokens {
		tf := float64(docFreq[tok])
		if tf == 0 {
			continue
		}
		score += tf * (bm25K1 + 1) / (tf + norm)
	}
	return score
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}
