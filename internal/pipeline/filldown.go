package pipeline

import (
	"bidtab/internal"
	"bidtab/internal/util"
)

// FillDown propagates quantity and unit from each line-item group's
// Engineer's Estimate row onto sibling bidder rows that carry none, then
// derives a missing amount as quantity*unit_price once both are known.
//
// The estimate row is the only authoritative source of quantity/unit; a
// bidder row's own non-null values are never overwritten, and groups
// without an estimate row pass through untouched (the validator rejects
// them later if they end up with no quantity anywhere). The transform is
// pure and idempotent: it groups first, then copies, so row order and
// repeated application cannot change the result.
func FillDown(rows []internal.RawRow) []internal.RawRow {
	type groupKey struct {
		schedule, option, lineItemNo string
	}

	type estimate struct {
		qty  *float64
		unit *string
	}

	estimates := map[groupKey]estimate{}
	for _, r := range rows {
		if r.Kind != internal.KindEngineersEstimate {
			continue
		}
		k := groupKey{r.Schedule, r.Option, r.LineItemNo}
		est := estimates[k]
		if est.qty == nil && r.Quantity != nil {
			est.qty = r.Quantity
		}
		if est.unit == nil && r.Unit != nil {
			est.unit = r.Unit
		}
		estimates[k] = est
	}

	out := make([]internal.RawRow, len(rows))
	copy(out, rows)
	for i := range out {
		if out[i].Kind == internal.KindBidder {
			est, ok := estimates[groupKey{out[i].Schedule, out[i].Option, out[i].LineItemNo}]
			if ok {
				if out[i].Quantity == nil && est.qty != nil {
					out[i].Quantity = est.qty
				}
				if out[i].Unit == nil && est.unit != nil {
					out[i].Unit = est.unit
				}
			}
		}
		if out[i].Amount == nil && out[i].Quantity != nil && out[i].UnitPrice != nil {
			out[i].Amount = util.FloatPtr(*out[i].Quantity * *out[i].UnitPrice)
		}
	}

	return out
}
