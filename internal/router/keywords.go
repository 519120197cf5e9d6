package router

import (
	"strings"

	"github.com/vygeek/vybuddy/internal/llm"
)

// The fallback table is configuration data: first-match-wins over an ordered
// rule list. Timesheet requests are a web application concern and must reach
// the knowledge agent before the mac rule can claim them.
type fallbackRule struct {
	keywords []string
	exclude  []string
	decision Decision
}

var fallbackRules = []fallbackRule{
	{
		keywords: []string{"wifi", "réseau", "connexion", "internet"},
		decision: Decision{Intent: "wifi", Backend: llm.BackendAnthropic, Agent: AgentNetwork, Confidence: 0.7},
	},
	{
		keywords: []string{"timesheet", "feuille de temps", "temps de travail"},
		decision: Decision{Intent: "knowledge", Backend: llm.BackendAnthropic, Agent: AgentKnowledge, Confidence: 0.8},
	},
	{
		keywords: []string{"mac", "macbook", "macos", "safari", "finder"},
		exclude:  []string{"timesheet"},
		decision: Decision{Intent: "macos", Backend: llm.BackendOpenAI, Agent: AgentMacOS, Confidence: 0.7},
	},
	{
		keywords: []string{"google", "workspace", "gmail", "drive", "calendar"},
		decision: Decision{Intent: "workspace", Backend: llm.BackendGemini, Agent: AgentWorkspace, Confidence: 0.7},
	},
	{
		keywords: []string{"procédure", "comment", "guide", "documentation"},
		decision: Decision{Intent: "knowledge", Backend: llm.BackendAnthropic, Agent: AgentKnowledge, Confidence: 0.7},
	},
}

var fallbackDefault = Decision{Intent: "other", Backend: llm.BackendOpenAI, Agent: AgentKnowledge, Confidence: 0.5}

func fallbackRoute(message string) Decision {
	lower := strings.ToLower(message)

rules:
	for _, rule := range fallbackRules {
		for _, ex := range rule.exclude {
			if strings.Contains(lower, ex) {
				continue rules
			}
		}
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				d := rule.decision
				d.Source = SourceFallback
				return d
			}
		}
	}

	d := fallbackDefault
	d.Source = SourceFallback
	return d
}
