// Package engine drives one task through plan and step execution.
// This file contains the budget guardrail: hard ceilings on iterations,
// tokens, and spend, checked before every model call.

package engine

import "strings"

// Limits are the run-wide ceilings. A zero value disables that ceiling.
type Limits struct {
	MaxIterations  int     // total LLM calls across the whole run
	MaxTotalTokens int     // input + output tokens across the whole run
	MaxCostUSD     float64 // estimated spend across the whole run
}

// DefaultLimits returns the ceilings applied when the caller configures none.
func DefaultLimits() Limits {
	return Limits{
		MaxIterations:  60,
		MaxTotalTokens: 400000,
		MaxCostUSD:     10.0,
	}
}

// UsageTotals accumulates what the run has consumed so far.
type UsageTotals struct {
	Iterations   int     `json:"iterations"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Add folds one call's usage into the totals, pricing it for the model.
func (t *UsageTotals) Add(model string, u Usage) {
	t.Iterations++
	t.InputTokens += u.InputTokens
	t.OutputTokens += u.OutputTokens
	t.CostUSD += CostForUsage(model, u)
}

// TotalTokens returns input plus output tokens consumed so far.
func (t UsageTotals) TotalTokens() int {
	return t.InputTokens + t.OutputTokens
}

// CheckBudget is a stateless guardrail: it compares totals against limits and
// returns a *BudgetExceededError for the first ceiling crossed. The error is
// fatal for the run; it is never retried.
func CheckBudget(t UsageTotals, l Limits) error {
	if l.MaxIterations > 0 && t.Iterations >= l.MaxIterations {
		return &BudgetExceededError{Kind: BudgetIterations, Value: float64(t.Iterations), Limit: float64(l.MaxIterations)}
	}
	if l.MaxTotalTokens > 0 && t.TotalTokens() >= l.MaxTotalTokens {
		return &BudgetExceededError{Kind: BudgetTokens, Value: float64(t.TotalTokens()), Limit: float64(l.MaxTotalTokens)}
	}
	if l.MaxCostUSD > 0 && t.CostUSD >= l.MaxCostUSD {
		return &BudgetExceededError{Kind: BudgetCost, Value: t.CostUSD, Limit: l.MaxCostUSD}
	}
	return nil
}

// ModelPrice is the per-million-token price for a model.
type ModelPrice struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// PriceForModel returns the price entry for a model, matched by substring the
// same way context windows are. Unknown models get a mid-tier price so cost
// ceilings still bite.
func PriceForModel(model string) ModelPrice {
	modelLower := strings.ToLower(model)

	switch {
	case strings.Contains(modelLower, "haiku"):
		return ModelPrice{InputPerMTok: 0.80, OutputPerMTok: 4.00}
	case strings.Contains(modelLower, "opus"):
		return ModelPrice{InputPerMTok: 15.00, OutputPerMTok: 75.00}
	case strings.Contains(modelLower, "sonnet") || strings.Contains(modelLower, "claude"):
		return ModelPrice{InputPerMTok: 3.00, OutputPerMTok: 15.00}
	case strings.Contains(modelLower, "gpt-4o-mini"):
		return ModelPrice{InputPerMTok: 0.15, OutputPerMTok: 0.60}
	case strings.Contains(modelLower, "gpt-4o"):
		return ModelPrice{InputPerMTok: 2.50, OutputPerMTok: 10.00}
	case strings.Contains(modelLower, "kimi"):
		return ModelPrice{InputPerMTok: 0.60, OutputPerMTok: 2.50}
	case strings.Contains(modelLower, "deepseek"):
		return ModelPrice{InputPerMTok: 0.27, OutputPerMTok: 1.10}
	}

	return ModelPrice{InputPerMTok: 3.00, OutputPerMTok: 15.00}
}

// CostForUsage prices one call's token usage for the given model.
func CostForUsage(model string, u Usage) float64 {
	price := PriceForModel(model)
	return float64(u.InputTokens)/1e6*price.InputPerMTok +
		float64(u.OutputTokens)/1e6*price.OutputPerMTok
}
