package scanner

import "strings"

// KnownAgents are the short agent identifiers recognised as @mentions and
// exempt from the short-token noise rule.
var KnownAgents = []string{
	"dev", "qa", "pm", "po", "sm", "architect", "devops",
	"analyst", "data-engineer", "ux-design-expert", "aios-master",
}

var sentinels = map[string]struct{}{
	"n/a": {}, "na": {}, "none": {}, "tbd": {}, "todo": {}, "-": {}, "": {},
}

func isKnownAgent(s string) bool {
	for _, a := range KnownAgents {
		if a == s {
			return true
		}
	}
	return false
}

// IsSentinel reports placeholder values such as "N/A", "tbd" or "-".
func IsSentinel(value string) bool {
	_, ok := sentinels[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// IsNoise reports fragments that cannot be entity references: one or two
// character tokens that are not agent ids, prose of more than two words,
// and template placeholders.
func IsNoise(value string) bool {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) <= 2 && !isKnownAgent(trimmed) {
		return true
	}
	if strings.Contains(trimmed, " ") && len(strings.Fields(trimmed)) > 2 {
		return true
	}
	return strings.Contains(trimmed, "{{") || strings.Contains(trimmed, "${")
}
