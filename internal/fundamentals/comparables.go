package fundamentals

import (
	"gonum.org/v1/gonum/stat"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
)

const (
	MaxPeers         = 5
	PEHistoryPeriods = 5
)

// PeerSymbols puts the target first followed by at most MaxPeers distinct peers.
func PeerSymbols(target string, peers []string) []string {
	symbols := []string{target}
	seen := map[string]bool{target: true}
	for _, p := range peers {
		p = domain.NormalizeTicker(p)
		if p == "" || seen[p] {
			continue
		}
		if len(symbols) > MaxPeers {
			break
		}
		seen[p] = true
		symbols = append(symbols, p)
	}
	return symbols
}

// Comparables builds the peer valuation table and compares the target's
// current P/E against the average of its last PEHistoryPeriods reported P/E values.
// Symbols with no TTM metrics are skipped.
func Comparables(target string, symbols []string, metrics map[string]domain.KeyMetricsTTM, history []domain.RatioSnapshot) domain.Comparables {
	result := domain.Comparables{
		Symbol: target,
		Peers:  make([]domain.PeerValuation, 0, len(symbols)),
	}
	var rawPE *float64

	for _, sym := range symbols {
		m, ok := metrics[sym]
		if !ok {
			continue
		}
		result.Peers = append(result.Peers, domain.PeerValuation{
			Symbol:     sym,
			PE:         roundPtr(m.PERatioTTM, 1),
			PB:         roundPtr(m.PBRatioTTM, 1),
			EVToEBITDA: roundPtr(m.EVToEBITDATTM, 1),
		})
		if sym == target && m.PERatioTTM != nil {
			rawPE = m.PERatioTTM
			result.CurrentPE = roundPtr(m.PERatioTTM, 1)
		}
	}

	values := make([]float64, 0, PEHistoryPeriods)
	for _, r := range history {
		if r.PriceEarningsRatio == nil {
			continue
		}
		values = append(values, *r.PriceEarningsRatio)
		if len(values) == PEHistoryPeriods {
			break
		}
	}

	if len(values) > 0 {
		avg := round(stat.Mean(values, nil), 1)
		result.AveragePE = &avg
		if rawPE != nil {
			delta := round(*rawPE-avg, 1)
			result.PEDelta = &delta
		}
	}

	return result
}

func roundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v, places)
	return &r
}
