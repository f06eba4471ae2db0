package analytics

import (
	"sort"
	"time"

	"tradeJournal/internal/domain"
)

// Summary holds aggregate figures over a set of journaled trades.
type Summary struct {
	// Basic Metrics
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       float64 `json:"winRate"`
	TotalPNL      float64 `json:"totalPnl"`
	TotalFees     float64 `json:"totalFees"` // Sum of estimated fees
	NetPNL        float64 `json:"netPnl"`
	AverageWin    float64 `json:"averageWin"`
	AverageLoss   float64 `json:"averageLoss"`
	ProfitFactor  float64 `json:"profitFactor"`
	AveragePNLPct float64 `json:"averagePnlPct"`
	Expectancy    float64 `json:"expectancy"`

	// Execution
	AverageDuration time.Duration `json:"averageDuration"`
	MakerShare      float64       `json:"makerShare"` // Fraction of trades classified maker
	AverageFills    float64       `json:"averageFills"`

	// Streaks and drawdown, in closing order
	MaxConsecutiveWins   int     `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses"`
	MaxDrawdown          float64 `json:"maxDrawdown"` // Largest peak-to-trough fall of cumulative PnL

	CloseReasons map[domain.CloseReason]int `json:"closeReasons"`
	BySymbol     map[string]float64         `json:"pnlBySymbol"`
	MonthlyPNL   map[string]float64         `json:"monthlyPnl"` // Keyed by "2006-01" of the close
}

// Summarize computes a Summary. trades is not modified.
func Summarize(trades []*domain.TradeRecord) *Summary {
	s := &Summary{
		CloseReasons: make(map[domain.CloseReason]int),
		BySymbol:     make(map[string]float64),
		MonthlyPNL:   make(map[string]float64),
	}
	if len(trades) == 0 {
		return s
	}

	ordered := make([]*domain.TradeRecord, len(trades))
	copy(ordered, trades)
	// Timestamps share one fixed-width layout, so string order is time order.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ClosedAt < ordered[j].ClosedAt
	})

	var (
		cumulative, peak                    float64
		consecutiveWins, consecutiveLosses  int
		totalWin, totalLoss, totalPct       float64
		totalDurationSec, makerCount, fills int64
	)

	for _, t := range ordered {
		s.TotalTrades++
		if t.PNL > 0 {
			s.WinningTrades++
			totalWin += t.PNL
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			s.LosingTrades++
			totalLoss += t.PNL
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > s.MaxConsecutiveWins {
			s.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > s.MaxConsecutiveLosses {
			s.MaxConsecutiveLosses = consecutiveLosses
		}

		s.TotalPNL += t.PNL
		s.TotalFees += t.Fee
		totalPct += t.PNLPct
		totalDurationSec += t.DurationSec
		fills += int64(t.NumFills)
		if t.IsMaker {
			makerCount++
		}

		s.CloseReasons[t.CloseReason()]++
		s.BySymbol[t.Symbol] += t.PNL
		if len(t.ClosedAt) >= len("2006-01") {
			s.MonthlyPNL[t.ClosedAt[:len("2006-01")]] += t.PNL
		}

		cumulative += t.PNL
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}

	n := float64(s.TotalTrades)
	s.WinRate = float64(s.WinningTrades) / n
	s.NetPNL = s.TotalPNL - s.TotalFees
	s.AveragePNLPct = totalPct / n
	s.AverageDuration = time.Duration(totalDurationSec/int64(s.TotalTrades)) * time.Second
	s.MakerShare = float64(makerCount) / n
	s.AverageFills = float64(fills) / n
	if s.WinningTrades > 0 {
		s.AverageWin = totalWin / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = totalLoss / float64(s.LosingTrades)
	}
	if totalLoss != 0 {
		s.ProfitFactor = totalWin / -totalLoss
	}
	s.Expectancy = (s.WinRate * s.AverageWin) + ((1 - s.WinRate) * s.AverageLoss)

	return s
}

// MonthlyReturn is the summed PnL of trades closed in one month.
type MonthlyReturn struct {
	Month string  `json:"month"`
	PNL   float64 `json:"pnl"`
}

// Months returns MonthlyPNL as a slice sorted by month.
func (s *Summary) Months() []MonthlyReturn {
	out := make([]MonthlyReturn, 0, len(s.MonthlyPNL))
	for month, pnl := range s.MonthlyPNL {
		out = append(out, MonthlyReturn{Month: month, PNL: pnl})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
