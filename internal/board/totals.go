package board

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xavierca1/leadboard/internal/entity"
)

type CurrencyTotal struct {
	CurrencyID string          `json:"currency"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
}

// Totals groups leads by currency id and sums their value, sorted by currency id.
func Totals(leads []entity.Lead) []CurrencyTotal {
	byCurrency := make(map[string]*CurrencyTotal)
	for _, l := range leads {
		t, ok := byCurrency[l.CurrencyID]
		if !ok {
			t = &CurrencyTotal{CurrencyID: l.CurrencyID, Total: decimal.Zero}
			byCurrency[l.CurrencyID] = t
		}
		t.Total = t.Total.Add(l.LeadValue)
		t.Count++
	}

	out := make([]CurrencyTotal, 0, len(byCurrency))
	for _, t := range byCurrency {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b CurrencyTotal) int {
		return cmp.Compare(a.CurrencyID, b.CurrencyID)
	})
	return out
}

// Partition buckets leads by leadStage. Leads pointing at a stage that is not in
// stages are returned as orphans, so buckets plus orphans always cover every lead once.
func Partition(stages []entity.Stage, leads []entity.Lead) (map[string][]entity.Lead, []entity.Lead) {
	buckets := make(map[string][]entity.Lead, len(stages))
	for _, st := range stages {
		buckets[st.ID] = nil
	}

	var orphans []entity.Lead
	for _, l := range leads {
		if _, ok := buckets[l.LeadStage]; !ok {
			orphans = append(orphans, l)
			continue
		}
		buckets[l.LeadStage] = append(buckets[l.LeadStage], l)
	}
	return buckets, orphans
}
