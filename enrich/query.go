package enrich

import (
	"regexp"
	"strings"

	"github.com/opsloop/sentinel/incident"
)

// maxQueries is the query-derivation cap (§4.2); domainTerm is appended to
// every candidate so results stay scoped to the operator's platform.
const maxQueries = 5

var alphabeticToken = regexp.MustCompile(`[A-Za-z]{4,}`)

// DeriveQueries builds up to maxQueries PublicKnowledge search queries from
// title, service, first symptom, alphabetic tokens pulled from error-level
// log messages, and hypothesis, each suffixed with domainTerm.
func DeriveQueries(inc incident.Incident, errorLogs []incident.LogEntry, domainTerm string) []string {
	candidates := []string{inc.Title, inc.AffectedService}
	if len(inc.Symptoms) > 0 {
		candidates = append(candidates, inc.Symptoms[0])
	}
	candidates = append(candidates, errorLogTokens(errorLogs))
	candidates = append(candidates, inc.Hypothesis)

	queries := make([]string, 0, maxQueries)
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		queries = append(queries, c+" "+domainTerm)
		if len(queries) == maxQueries {
			break
		}
	}
	return queries
}

// errorLogTokens joins a handful of distinct alphabetic tokens (4+ chars)
// found in error-level log messages, giving the search query concrete
// error terms without the full message text.
func errorLogTokens(logs []incident.LogEntry) string {
	seen := make(map[string]bool)
	var tokens []string
	for _, l := range logs {
		if l.Level != incident.LevelError {
			continue
		}
		for _, tok := range alphabeticToken.FindAllString(l.Message, -1) {
			lower := strings.ToLower(tok)
			if seen[lower] {
				continue
			}
			seen[lower] = true
			tokens = append(tokens, tok)
			if len(tokens) == 6 {
				return strings.Join(tokens, " ")
			}
		}
	}
	return strings.Join(tokens, " ")
}
