package engine

import (
	"errors"
	"testing"
)

func TestCheckBudgetCeilings(t *testing.T) {
	limits := Limits{MaxIterations: 10, MaxTotalTokens: 1000, MaxCostUSD: 1.0}

	tests := []struct {
		name   string
		totals UsageTotals
		kind   BudgetKind
		ok     bool
	}{
		{"under everything", UsageTotals{Iterations: 5, InputTokens: 100, OutputTokens: 100, CostUSD: 0.1}, "", true},
		{"at iteration ceiling", UsageTotals{Iterations: 10}, BudgetIterations, false},
		{"at token ceiling", UsageTotals{InputTokens: 600, OutputTokens: 400}, BudgetTokens, false},
		{"at cost ceiling", UsageTotals{CostUSD: 1.0}, BudgetCost, false},
		{"over cost ceiling", UsageTotals{CostUSD: 3.5}, BudgetCost, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBudget(tt.totals, limits)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var be *BudgetExceededError
			if !errors.As(err, &be) {
				t.Fatalf("error %v is not a BudgetExceededError", err)
			}
			if be.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", be.Kind, tt.kind)
			}
			if !IsBudgetExceeded(err) {
				t.Error("IsBudgetExceeded = false")
			}
		})
	}
}

func TestCheckBudgetZeroDisables(t *testing.T) {
	totals := UsageTotals{Iterations: 1e6, InputTokens: 1e9, CostUSD: 1e6}
	if err := CheckBudget(totals, Limits{}); err != nil {
		t.Fatalf("zero limits should disable all ceilings, got %v", err)
	}
}

func TestUsageTotalsAdd(t *testing.T) {
	var totals UsageTotals
	totals.Add("claude-sonnet-4-20250514", Usage{InputTokens: 1000, OutputTokens: 500})
	totals.Add("claude-sonnet-4-20250514", Usage{InputTokens: 2000, OutputTokens: 100})

	if totals.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", totals.Iterations)
	}
	if totals.TotalTokens() != 3600 {
		t.Errorf("total tokens = %d, want 3600", totals.TotalTokens())
	}
	// 3000 in * $3/M + 600 out * $15/M
	want := 3000.0/1e6*3.0 + 600.0/1e6*15.0
	if diff := totals.CostUSD - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost = %f, want %f", totals.CostUSD, want)
	}
}

func TestPriceForModelFallback(t *testing.T) {
	// Unknown models get a non-zero mid-tier price so cost ceilings still work.
	p := PriceForModel("totally-novel-model")
	if p.InputPerMTok <= 0 || p.OutputPerMTok <= 0 {
		t.Fatalf("fallback price is zero: %+v", p)
	}
}
