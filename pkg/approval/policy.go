package approval

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// sensitiveVerbs trigger the heuristic when paired with production-looking
// inputs, even without explicit policy configuration.
var sensitiveVerbs = []string{
	"delete", "remove", "update", "create", "modify",
	"execute", "run", "send", "transfer", "pay",
}

// Policy decides which tool invocations must pass through human approval.
// Matching is first-match-wins: tool substrings, then integration ids, then
// regex patterns, then the sensitive-verb heuristic.
type Policy struct {
	ToolSubstrings []string `json:"tool_substrings"`
	IntegrationIDs []string `json:"integration_ids"`
	Patterns       []string `json:"patterns"`

	compiled []*regexp.Regexp
}

// Compile pre-compiles the regex patterns. Invalid patterns are skipped with
// a warning rather than failing the whole policy.
func (p *Policy) Compile() {
	p.compiled = p.compiled[:0]
	for _, pat := range p.Patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			log.Warn().Str("pattern", pat).Err(err).Msg("Skipping invalid approval policy pattern")
			continue
		}
		p.compiled = append(p.compiled, re)
	}
}

// Matches reports whether an invocation of tool requires approval.
func (p *Policy) Matches(tool, integrationID string, inputs map[string]interface{}) bool {
	lowerTool := strings.ToLower(tool)

	for _, sub := range p.ToolSubstrings {
		if strings.Contains(lowerTool, strings.ToLower(sub)) {
			return true
		}
	}
	for _, id := range p.IntegrationIDs {
		if id == integrationID {
			return true
		}
	}
	for _, re := range p.compiled {
		if re.MatchString(tool) {
			return true
		}
	}

	// Heuristic: a mutating verb in the tool name combined with inputs that
	// mention production.
	hasVerb := false
	for _, verb := range sensitiveVerbs {
		if strings.Contains(lowerTool, verb) {
			hasVerb = true
			break
		}
	}
	if !hasVerb {
		return false
	}

	raw, err := json.Marshal(inputs)
	if err != nil {
		return false
	}
	serialized := strings.ToLower(string(raw))
	return strings.Contains(serialized, "production") || strings.Contains(serialized, "prod")
}
