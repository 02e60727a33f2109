package reconcile

import (
	"cmp"
	"slices"

	"github.com/roach88/conteo/internal/ir"
)

// UserAggregate is one counter's net contribution to a count.
// Quantities only holds codes whose net quantity is positive.
type UserAggregate struct {
	UserID     string           `json:"user_id"`
	Quantities map[string]int64 `json:"quantities"`
	TotalItems int              `json:"total_items"`
	TotalUnits int64            `json:"total_units"`
}

// Aggregate folds events into per-user net quantities.
// The result does not depend on the order of events.
func Aggregate(events []ir.ScanEvent) map[string]UserAggregate {
	net := make(map[string]map[string]*netSum)
	for _, ev := range events {
		byCode, ok := net[ev.UserID]
		if !ok {
			byCode = make(map[string]*netSum)
			net[ev.UserID] = byCode
		}
		sum, ok := byCode[ev.Code]
		if !ok {
			sum = &netSum{}
			byCode[ev.Code] = sum
		}
		sum.add(ev.Quantity)
	}

	aggs := make(map[string]UserAggregate, len(net))
	for userID, byCode := range net {
		agg := UserAggregate{
			UserID:     userID,
			Quantities: make(map[string]int64, len(byCode)),
		}
		for code, sum := range byCode {
			qty := sum.value()
			if qty <= 0 {
				continue
			}
			agg.Quantities[code] = qty
			agg.TotalItems++
			agg.TotalUnits = addCapped(agg.TotalUnits, qty)
		}
		aggs[userID] = agg
	}
	return aggs
}

// CodeTotals sums user aggregates into a net quantity per code.
func CodeTotals(aggs map[string]UserAggregate) map[string]int64 {
	totals := make(map[string]int64)
	for _, agg := range aggs {
		for code, qty := range agg.Quantities {
			totals[code] = addCapped(totals[code], qty)
		}
	}
	return totals
}

// Totals is Aggregate followed by CodeTotals.
func Totals(events []ir.ScanEvent) map[string]int64 {
	return CodeTotals(Aggregate(events))
}

// firstSeen returns the distinct codes of events in order of their lowest
// seq. Ties (equal seq) fall back to code order.
func firstSeen(events []ir.ScanEvent) []string {
	first := make(map[string]int64)
	for _, ev := range events {
		if seq, ok := first[ev.Code]; !ok || ev.Seq < seq {
			first[ev.Code] = ev.Seq
		}
	}

	codes := make([]string, 0, len(first))
	for code := range first {
		codes = append(codes, code)
	}
	slices.SortFunc(codes, func(a, b string) int {
		if c := cmp.Compare(first[a], first[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return codes
}
