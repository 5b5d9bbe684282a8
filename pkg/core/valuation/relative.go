package valuation

import (
	"sort"

	"dcfengine/pkg/models"
)

// RelativeInput holds the subject company's metrics for the multiples
// cross-check. Metrics are the latest historical figures, independent of the
// DCF projection chain.
type RelativeInput struct {
	EBITDA            float64
	NetIncome         float64
	NetDebt           float64
	SharesOutstanding float64
	Peers             []models.PeerMultiple
}

// ImpliedRange is one multiple's implied per-share valuation band.
type ImpliedRange struct {
	Multiple     string  `json:"multiple"` // "ev_ebitda", "pe"
	Low          float64 `json:"low"`
	Median       float64 `json:"median"`
	High         float64 `json:"high"`
	PeerCount    int     `json:"peer_count"`
	PerShareLow  float64 `json:"per_share_low"`
	PerShareMid  float64 `json:"per_share_mid"`
	PerShareHigh float64 `json:"per_share_high"`
}

// RelativeResult is the peer-multiple-implied valuation range. Nil ranges
// mean no peer reported that multiple.
type RelativeResult struct {
	EVEBITDA *ImpliedRange `json:"ev_ebitda,omitempty"`
	PE       *ImpliedRange `json:"pe,omitempty"`

	// Aggregate per-share band across available multiples.
	PerShareLow  float64 `json:"per_share_low"`
	PerShareMid  float64 `json:"per_share_mid"`
	PerShareHigh float64 `json:"per_share_high"`
}

// CalculateRelative applies peer multiples to the subject's metrics. Peers
// with an absent multiple are skipped, never treated as zero.
func CalculateRelative(in RelativeInput) (*RelativeResult, error) {
	if in.SharesOutstanding <= 0 {
		return nil, &InvalidInputError{Field: "shares_outstanding", Reason: "must be positive"}
	}

	var evEbitda, pe []float64
	for _, p := range in.Peers {
		if v, ok := models.Val(p.EVEBITDA); ok && v > 0 {
			evEbitda = append(evEbitda, v)
		}
		if v, ok := models.Val(p.PE); ok && v > 0 {
			pe = append(pe, v)
		}
	}

	res := &RelativeResult{}

	if len(evEbitda) > 0 {
		lo, med, hi := spread(evEbitda)
		// Implied EV -> equity -> per share
		toShare := func(mult float64) float64 {
			return (in.EBITDA*mult - in.NetDebt) / in.SharesOutstanding
		}
		res.EVEBITDA = &ImpliedRange{
			Multiple: "ev_ebitda", Low: lo, Median: med, High: hi, PeerCount: len(evEbitda),
			PerShareLow: toShare(lo), PerShareMid: toShare(med), PerShareHigh: toShare(hi),
		}
	}
	if len(pe) > 0 && in.NetIncome > 0 {
		lo, med, hi := spread(pe)
		toShare := func(mult float64) float64 {
			return in.NetIncome * mult / in.SharesOutstanding
		}
		res.PE = &ImpliedRange{
			Multiple: "pe", Low: lo, Median: med, High: hi, PeerCount: len(pe),
			PerShareLow: toShare(lo), PerShareMid: toShare(med), PerShareHigh: toShare(hi),
		}
	}

	ranges := make([]*ImpliedRange, 0, 2)
	if res.EVEBITDA != nil {
		ranges = append(ranges, res.EVEBITDA)
	}
	if res.PE != nil {
		ranges = append(ranges, res.PE)
	}
	if len(ranges) == 0 {
		return nil, &InvalidInputError{Field: "peers", Reason: "no usable peer multiples"}
	}
	for i, r := range ranges {
		if i == 0 {
			res.PerShareLow, res.PerShareHigh = r.PerShareLow, r.PerShareHigh
		} else {
			if r.PerShareLow < res.PerShareLow {
				res.PerShareLow = r.PerShareLow
			}
			if r.PerShareHigh > res.PerShareHigh {
				res.PerShareHigh = r.PerShareHigh
			}
		}
		res.PerShareMid += r.PerShareMid / float64(len(ranges))
	}
	return res, nil
}

// spread returns low/median/high of a sample.
func spread(vals []float64) (lo, med, hi float64) {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	lo, hi = s[0], s[len(s)-1]
	mid := len(s) / 2
	if len(s)%2 == 1 {
		med = s[mid]
	} else {
		med = (s[mid-1] + s[mid]) / 2
	}
	return lo, med, hi
}
