package entitlements

import (
	"strings"

	"github.com/accessibility-build/platform/app/models"
)

type Plan string

const (
	PlanFree    Plan = models.PlanFree
	PlanPremium Plan = models.PlanPremium
)

// Tool identifies a gated accessibility tool.
type Tool string

const (
	ToolContrastChecker        Tool = "contrast_checker"
	ToolAltTextGenerator       Tool = "alt_text_generator"
	ToolJSONFormatter          Tool = "json_formatter"
	ToolURLAccessibilityAudit  Tool = "url_accessibility_auditor"
	ToolColorPaletteGenerator  Tool = "color_palette_generator"
	ToolHeadingStructureReview Tool = "heading_analyzer"
)

type toolPolicy struct {
	creditCost   int
	requiresAuth bool
}

var policies = map[Tool]toolPolicy{
	ToolContrastChecker:        {creditCost: 1},
	ToolAltTextGenerator:       {creditCost: 1},
	ToolJSONFormatter:          {creditCost: 1},
	ToolColorPaletteGenerator:  {creditCost: 1},
	ToolHeadingStructureReview: {creditCost: 1},
	// Crawls third-party sites, never available anonymously.
	ToolURLAccessibilityAudit: {creditCost: 5, requiresAuth: true},
}

// ParseTool accepts both snake_case and kebab-case names.
func ParseTool(name string) (Tool, bool) {
	t := Tool(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	if _, ok := policies[t]; !ok {
		return "", false
	}
	return t, true
}

// AllTools returns every known tool in a stable order.
func AllTools() []Tool {
	return []Tool{
		ToolContrastChecker,
		ToolAltTextGenerator,
		ToolJSONFormatter,
		ToolColorPaletteGenerator,
		ToolHeadingStructureReview,
		ToolURLAccessibilityAudit,
	}
}

// CreditCost returns how many credits one invocation costs a signed-in user.
func CreditCost(t Tool) int {
	if p, ok := policies[t]; ok {
		return p.creditCost
	}
	return 1
}

// RequiresAuth reports whether the tool is unavailable to anonymous callers.
func RequiresAuth(t Tool) bool {
	return policies[t].requiresAuth
}

// AuthRequiredTools lists the tools that are never offered as a trial.
func AuthRequiredTools() []Tool {
	var out []Tool
	for _, t := range AllTools() {
		if RequiresAuth(t) {
			out = append(out, t)
		}
	}
	return out
}

// PlanForBalance derives the effective plan from a credit balance.
func PlanForBalance(balance int64) Plan {
	if balance > 0 {
		return PlanPremium
	}
	return PlanFree
}
