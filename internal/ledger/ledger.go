// Package ledger computes the daily cash reconciliation: denomination
// totals, expected versus actual cash, and the signed variance. Everything
// here is derived on demand from the live rows; nothing is cached.
package ledger

import (
	"math"

	"github.com/onglesrivieres/salon360-sub003/internal/models"
	"github.com/onglesrivieres/salon360-sub003/internal/store"
)

// faceValueCents maps each counted denomination to its value in cents.
// Totals are summed in integer cents so counts never pick up float drift.
var faceValueCents = []struct {
	count func(models.DenominationCounts) int
	cents int64
}{
	{func(d models.DenominationCounts) int { return d.Bill100 }, 10000},
	{func(d models.DenominationCounts) int { return d.Bill50 }, 5000},
	{func(d models.DenominationCounts) int { return d.Bill20 }, 2000},
	{func(d models.DenominationCounts) int { return d.Bill10 }, 1000},
	{func(d models.DenominationCounts) int { return d.Bill5 }, 500},
	{func(d models.DenominationCounts) int { return d.Bill2 }, 200},
	{func(d models.DenominationCounts) int { return d.Bill1 }, 100},
	{func(d models.DenominationCounts) int { return d.Coin25 }, 25},
	{func(d models.DenominationCounts) int { return d.Coin10 }, 10},
	{func(d models.DenominationCounts) int { return d.Coin5 }, 5},
}

// Total sums count × face value over the denomination set.
func Total(d models.DenominationCounts) float64 {
	var cents int64
	for _, face := range faceValueCents {
		cents += int64(face.count(d)) * face.cents
	}
	return float64(cents) / 100
}

// Summary reduces a ledger day plus the live transaction totals to the
// balanced/unbalanced verdict. Missing opening or closing counts contribute
// zero, so a half-entered day simply reads as unbalanced.
func Summary(day models.CashLedgerDay, totals store.LedgerTotals) models.LedgerSummary {
	var openingTotal, closingTotal float64
	if day.Opening != nil {
		openingTotal = Total(*day.Opening)
	}
	if day.Closing != nil {
		closingTotal = Total(*day.Closing)
	}

	netCollected := roundCents(totals.ExpectedFromSales + totals.ApprovedCashIn - totals.ApprovedCashOut)
	actualChange := roundCents(closingTotal - openingTotal)
	variance := roundCents(actualChange - netCollected)

	return models.LedgerSummary{
		OpeningTotal:      openingTotal,
		ClosingTotal:      closingTotal,
		ExpectedFromSales: totals.ExpectedFromSales,
		ApprovedCashIn:    totals.ApprovedCashIn,
		ApprovedCashOut:   totals.ApprovedCashOut,
		NetCollected:      netCollected,
		ActualChange:      actualChange,
		Variance:          variance,
		Balanced:          math.Abs(variance) < 0.01,
	}
}

// SuggestOpening returns the carry-forward suggestion for a day with no
// opening count yet: the previous business day's closing counts. The
// suggestion is advisory only; it is persisted only through an explicit
// opening count submission.
func SuggestOpening(day models.CashLedgerDay, previousClosing *models.DenominationCounts) *models.DenominationCounts {
	if day.Opening != nil {
		return nil
	}
	if previousClosing == nil {
		return nil
	}
	suggestion := *previousClosing
	return &suggestion
}

func roundCents(value float64) float64 {
	return math.Round(value*100) / 100
}
