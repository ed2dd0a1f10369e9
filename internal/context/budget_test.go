package context

import "testing"

func TestOutputReserveHonorsMaxOutputTokens(t *testing.T) {
	b := NewBudgetManager(10_000, 5_000, DefaultBudgetRatios())
	// 10_000 * 0.20 = 2000, less than max_output_tokens 5000, so reserve
	// should be 5000.
	if got := b.OutputReserve(); got != 5000 {
		t.Fatalf("OutputReserve() = %d, want 5000", got)
	}
}

func TestOutputReserveHonorsRatioWhenLarger(t *testing.T) {
	b := NewBudgetManager(128_000, 8_000, DefaultBudgetRatios())
	if got := b.OutputReserve(); got != 25_600 {
		t.Fatalf("OutputReserve() = %d, want 25600", got)
	}
}

func TestAllocateSumsToTotalAvailable(t *testing.T) {
	b := NewBudgetManager(128_000, 8_000, DefaultBudgetRatios())
	alloc := b.Allocate("")
	sum := 0
	for _, v := range alloc {
		sum += v
	}
	total := b.TotalAvailable()
	if diff := total - sum; diff < 0 || diff > len(alloc) {
		t.Fatalf("sum of allocations %d too far from total available %d", sum, total)
	}
}

func TestAllocateAppliesAgentScaling(t *testing.T) {
	b := NewBudgetManager(128_000, 8_000, DefaultBudgetRatios())
	writer := b.Allocate("writer")
	archivist := b.Allocate("archivist")
	if writer[CategorySummaries] <= archivist[CategorySummaries] {
		t.Fatalf("writer summaries allocation %d should exceed archivist's %d", writer[CategorySummaries], archivist[CategorySummaries])
	}
}
