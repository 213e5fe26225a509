package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTool(t *testing.T) {
	tests := []struct {
		in   string
		want Tool
		ok   bool
	}{
		{in: "contrast_checker", want: ToolContrastChecker, ok: true},
		{in: "contrast-checker", want: ToolContrastChecker, ok: true},
		{in: " JSON_Formatter ", want: ToolJSONFormatter, ok: true},
		{in: "url-accessibility-auditor", want: ToolURLAccessibilityAudit, ok: true},
		{in: "unknown", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseTool(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAuthRequiredTools(t *testing.T) {
	assert.Equal(t, []Tool{ToolURLAccessibilityAudit}, AuthRequiredTools())
	assert.True(t, RequiresAuth(ToolURLAccessibilityAudit))
	assert.False(t, RequiresAuth(ToolContrastChecker))
}

func TestCreditCost(t *testing.T) {
	assert.Equal(t, 1, CreditCost(ToolContrastChecker))
	assert.Equal(t, 5, CreditCost(ToolURLAccessibilityAudit))
	assert.Equal(t, 1, CreditCost(Tool("missing")))
}

func TestPlanForBalance(t *testing.T) {
	assert.Equal(t, PlanFree, PlanForBalance(0))
	assert.Equal(t, PlanFree, PlanForBalance(-3))
	assert.Equal(t, PlanPremium, PlanForBalance(1))
}
