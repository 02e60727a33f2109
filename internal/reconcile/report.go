package reconcile

import (
	"cmp"
	"slices"
	"time"

	"github.com/roach88/conteo/internal/ir"
)

// Header identifies the count a report describes.
type Header struct {
	CountID       string       `json:"count_id"`
	Kind          ir.CountKind `json:"kind"`
	Reference     string       `json:"reference,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	Finalized     bool         `json:"finalized"`
	FinalizedAt   time.Time    `json:"finalized_at,omitzero"`
	Clarification string       `json:"clarification,omitempty"`
	Users         int          `json:"users"`
	Events        int          `json:"events"`
	LastSeq       int64        `json:"last_seq"`
}

// UserLine is one code a user scanned.
type UserLine struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	Expected    bool   `json:"expected"`
}

// UserBrand groups a user's lines under one brand.
type UserBrand struct {
	Brand string     `json:"brand"`
	Units int64      `json:"units"`
	Lines []UserLine `json:"lines"`
}

// UserBreakdown is everything one user contributed to a count.
type UserBreakdown struct {
	UserID     string      `json:"user_id"`
	TotalItems int         `json:"total_items"`
	TotalUnits int64       `json:"total_units"`
	Brands     []UserBrand `json:"brands"`
}

// Report is the read model of a count.
//
// Discrepancies is set only for finalized counts and is the frozen result,
// not a recomputation. History is set only when the caller asked for it.
type Report struct {
	Header        Header            `json:"header"`
	Users         []UserBreakdown   `json:"users"`
	Progress      ProgressSummary   `json:"progress"`
	Discrepancies []ir.Discrepancy  `json:"discrepancies,omitempty"`
	History       []ir.HistoryEntry `json:"history,omitempty"`
}

// Assemble shapes a count, its event log and optionally its history into a
// Report. All numbers come from Aggregate, Progress and the frozen result.
func Assemble(count ir.Count, events []ir.ScanEvent, history []ir.HistoryEntry) Report {
	aggs := Aggregate(events)

	report := Report{
		Header: Header{
			CountID:       count.ID,
			Kind:          count.Kind,
			Reference:     count.Reference,
			CreatedAt:     count.CreatedAt,
			Finalized:     count.Finalized,
			FinalizedAt:   count.FinalizedAt,
			Clarification: count.Clarification,
			Events:        len(events),
		},
		Users:    userBreakdowns(count, events, aggs),
		Progress: Progress(count.Items, CodeTotals(aggs)),
		History:  history,
	}

	for _, ev := range events {
		report.Header.LastSeq = max(report.Header.LastSeq, ev.Seq)
	}
	report.Header.Users = len(report.Users)

	if count.Finalized && count.Result != nil {
		report.Discrepancies = count.Result.Records
	}
	return report
}

// userBreakdowns lists users by ID. Within a user, brands follow
// compareBrands and lines keep first-seen order.
func userBreakdowns(count ir.Count, events []ir.ScanEvent, aggs map[string]UserAggregate) []UserBreakdown {
	items := count.ItemsByCode()

	byUser := make(map[string][]ir.ScanEvent)
	for _, ev := range events {
		byUser[ev.UserID] = append(byUser[ev.UserID], ev)
	}

	users := make([]UserBreakdown, 0, len(aggs))
	for userID, agg := range aggs {
		if agg.TotalItems == 0 {
			continue
		}

		ub := UserBreakdown{
			UserID:     userID,
			TotalItems: agg.TotalItems,
			TotalUnits: agg.TotalUnits,
			Brands:     []UserBrand{},
		}

		brandIdx := make(map[string]int)
		for _, code := range firstSeen(byUser[userID]) {
			qty := agg.Quantities[code]
			if qty <= 0 {
				continue
			}

			line := UserLine{Code: code, Quantity: qty}
			brand := OtherBrands
			if it, ok := items[code]; ok {
				line.Description = it.Description
				line.Expected = true
				brand = BrandOf(it.Brand, it.Description)
			}

			i, ok := brandIdx[brand]
			if !ok {
				i = len(ub.Brands)
				brandIdx[brand] = i
				ub.Brands = append(ub.Brands, UserBrand{Brand: brand, Lines: []UserLine{}})
			}
			ub.Brands[i].Units = addCapped(ub.Brands[i].Units, qty)
			ub.Brands[i].Lines = append(ub.Brands[i].Lines, line)
		}

		slices.SortFunc(ub.Brands, func(a, b UserBrand) int {
			return compareBrands(a.Brand, b.Brand)
		})
		users = append(users, ub)
	}

	slices.SortFunc(users, func(a, b UserBreakdown) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return users
}
