package coverage

import (
	"regexp"
	"sort"
	"strings"

	"github.com/wramirez09/langchain-agent-sub000/model"
)

var parenthetical = regexp.MustCompile(`\(([^()]*)\)`)

// needles expands a query into substrings to look for, strongest first:
// the query itself, the query without parentheses, the text outside the
// parentheses and each parenthetical fragment. "diabetes (type 2)" yields
// "diabetes (type 2)", "diabetes type 2", "diabetes" and "type 2".
func needles(query string) []string {
	q := collapse(strings.ToLower(query))
	if q == "" {
		return nil
	}

	candidates := []string{
		q,
		collapse(strings.NewReplacer("(", " ", ")", " ").Replace(q)),
		collapse(parenthetical.ReplaceAllString(q, " ")),
	}
	for _, m := range parenthetical.FindAllStringSubmatch(q, -1) {
		candidates = append(candidates, collapse(m[1]))
	}

	seen := make(map[string]bool, len(candidates))
	result := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if len(c) < 2 || seen[c] {
			continue
		}
		seen[c] = true
		result = append(result, c)
	}
	return result
}

// match filters references whose title or display id contains one of the
// query's needles, ordered by needle strength then upstream order, and
// truncated to limit.
func match(refs []model.CoverageReference, query string, limit int) []model.CoverageReference {
	ns := needles(query)
	if len(ns) == 0 {
		return nil
	}

	type scored struct {
		ref  model.CoverageReference
		rank int
	}
	var hits []scored
	for _, ref := range refs {
		haystack := collapse(strings.ToLower(ref.Title + " " + ref.DisplayID))
		for rank, n := range ns {
			if strings.Contains(haystack, n) {
				hits = append(hits, scored{ref: ref, rank: rank})
				break
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	result := make([]model.CoverageReference, len(hits))
	for i, h := range hits {
		result[i] = h.ref
	}
	return result
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
