package intake

import "strings"

// keywordCategories is the static fallback table used when the keyword
// model is unavailable or replies with something unparseable. A category
// matches when any of its keywords appears in the exchange text.
var keywordCategories = []struct {
	name     string
	keywords []string
}{
	{"development", []string{
		"code", "programming", "debug", "error", "function", "class", "variable",
		"api", "endpoint", "database", "query", "sql", "python", "java", "javascript",
		"git", "commit", "merge", "branch", "deploy", "build", "test",
	}},
	{"infrastructure", []string{
		"server", "docker", "kubernetes", "container", "cloud", "aws", "azure",
		"network", "firewall", "security", "ssl", "certificate", "dns", "load balancer",
		"nginx", "apache", "postgres", "redis", "mongodb",
	}},
	{"project_management", []string{
		"task", "deadline", "milestone", "sprint", "backlog", "priority", "status",
		"meeting", "standup", "retrospective", "planning", "estimate", "blocker",
	}},
	{"documentation", []string{
		"readme", "docs", "documentation", "guide", "tutorial", "explanation",
		"architecture", "design", "specification", "requirement", "manual",
	}},
	{"personal", []string{
		"note", "reminder", "todo", "idea", "thought", "observation", "reflection",
		"journal", "log", "diary",
	}},
	{"ai_model", []string{
		"llm", "model", "embedding", "vector", "semantic", "prompt", "inference",
		"training", "fine-tune", "transformer", "ollama", "mistral", "llama",
	}},
	{"system", []string{
		"memory", "cpu", "disk", "process", "thread", "performance", "monitor",
		"log", "trace", "metric", "alert", "health",
	}},
}

// categorize returns the categories whose keywords appear in text, in
// table order. No match returns an empty slice.
func categorize(text string) []string {
	lower := strings.ToLower(text)
	matches := []string{}
	for _, cat := range keywordCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				matches = append(matches, cat.name)
				break
			}
		}
	}
	return matches
}
