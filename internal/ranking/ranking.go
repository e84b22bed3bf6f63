// Package ranking orders competing investor offers for a pitch by a weighted
// composite score. Larger principal scores higher; lower annual interest
// scores higher. Scores are a per-request derived view and are never treated
// as ground truth by callers.
package ranking

import (
	"math"
	"sort"

	"github.com/mastAk7/finvest/internal/domain"
	"github.com/mastAk7/finvest/internal/models"
)

// Weights controls the relative contribution of principal and interest to the
// composite score. Weights that do not sum to 1 are normalized by their sum.
type Weights struct {
	Principal float64
	Interest  float64
}

// Default returns the product-default 60/40 principal/interest split.
func Default() Weights {
	return Weights{Principal: 0.6, Interest: 0.4}
}

// normalized validates the weights and scales them to sum to 1.
func (w Weights) normalized() (Weights, error) {
	if !isFinite(w.Principal) || !isFinite(w.Interest) {
		return Weights{}, domain.E(domain.KindInvalidConfiguration, "ranking weights must be finite numbers")
	}
	if w.Principal < 0 || w.Interest < 0 {
		return Weights{}, domain.E(domain.KindInvalidConfiguration, "ranking weights must not be negative")
	}
	sum := w.Principal + w.Interest
	if sum <= 0 {
		return Weights{}, domain.E(domain.KindInvalidConfiguration, "ranking weights must sum to a positive total")
	}
	return Weights{Principal: w.Principal / sum, Interest: w.Interest / sum}, nil
}

// Rank computes a composite score for each offer and returns a new slice
// ordered best offer first. The input slice is not modified.
//
// Scoring: principal and annual interest are min-max normalized across the
// batch; the interest term is inverted so that lower interest contributes
// positively. A degenerate dimension (all offers equal, including a
// single-offer batch) normalizes to 1.0, so a lone offer always scores 1.0.
//
// When firstBidderWinsTies is set, equal scores are ordered by earliest
// CreatedAt; otherwise ties keep their input order.
func Rank(offers []models.Offer, w Weights, firstBidderWinsTies bool) ([]models.Offer, error) {
	nw, err := w.normalized()
	if err != nil {
		return nil, err
	}

	if len(offers) == 0 {
		return []models.Offer{}, nil
	}

	for i := range offers {
		if err := validateOffer(&offers[i]); err != nil {
			return nil, err
		}
	}

	pMin, pMax := offers[0].Principal, offers[0].Principal
	iMin, iMax := offers[0].InterestAnnualPct, offers[0].InterestAnnualPct
	for _, o := range offers[1:] {
		pMin = math.Min(pMin, o.Principal)
		pMax = math.Max(pMax, o.Principal)
		iMin = math.Min(iMin, o.InterestAnnualPct)
		iMax = math.Max(iMax, o.InterestAnnualPct)
	}

	ranked := make([]models.Offer, len(offers))
	copy(ranked, offers)
	for i := range ranked {
		pScore := normalize(ranked[i].Principal, pMin, pMax)
		iScore := normalize(ranked[i].InterestAnnualPct, iMin, iMax)
		if iMax > iMin {
			iScore = 1.0 - iScore // Lower interest is better
		}
		score := nw.Principal*pScore + nw.Interest*iScore
		ranked[i].CompositeScore = &score
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		sa, sb := *ranked[a].CompositeScore, *ranked[b].CompositeScore
		if sa != sb {
			return sa > sb
		}
		if firstBidderWinsTies {
			return ranked[a].CreatedAt.Before(ranked[b].CreatedAt)
		}
		return false
	})

	return ranked, nil
}

// normalize scales value into [0,1] relative to the batch min/max. When the
// batch has no spread there is nothing to discriminate on, so every offer
// gets full credit for the dimension.
func normalize(value, vmin, vmax float64) float64 {
	if vmax <= vmin {
		return 1.0
	}
	return (value - vmin) / (vmax - vmin)
}

func validateOffer(o *models.Offer) error {
	if !isFinite(o.Principal) || o.Principal <= 0 {
		return domain.Ef(domain.KindValidation, "offer %s: principal must be a positive number", o.ID)
	}
	if !isFinite(o.InterestAnnualPct) || o.InterestAnnualPct < 0 || o.InterestAnnualPct > 100 {
		return domain.Ef(domain.KindValidation, "offer %s: interest_annual_pct must be between 0 and 100", o.ID)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
