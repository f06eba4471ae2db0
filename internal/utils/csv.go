package utils

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"tradeJournal/internal/domain"
)

// TradeCSVHeader lists the exported columns, in the order of the journal table.
var TradeCSVHeader = []string{
	"id", "symbol", "side", "qty", "entry", "exit", "pnl", "pnl_pct", "fee", "leverage",
	"duration_sec", "tp_hit", "sl_hit", "mt_close", "is_maker", "order_type",
	"time_in_force", "num_fills", "opened_at", "closed_at",
}

// WriteTradesToCSV writes trades to filename, replacing any existing file.
func WriteTradesToCSV(trades []*domain.TradeRecord, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteTrades(file, trades); err != nil {
		return err
	}
	return file.Close()
}

// WriteTrades writes a header row and one row per trade to w.
// Flags are written as 0/1 to match the stored columns.
func WriteTrades(w io.Writer, trades []*domain.TradeRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(TradeCSVHeader); err != nil {
		return err
	}
	for _, t := range trades {
		err := writer.Write([]string{
			t.ID,
			t.Symbol,
			t.Side,
			formatFloat(t.Qty),
			formatFloat(t.Entry),
			formatFloat(t.Exit),
			formatFloat(t.PNL),
			formatFloat(t.PNLPct),
			formatFloat(t.Fee),
			strconv.Itoa(t.Leverage),
			strconv.FormatInt(t.DurationSec, 10),
			flag(t.TPHit),
			flag(t.SLHit),
			flag(t.MTClose),
			flag(t.IsMaker),
			t.OrderType,
			t.TimeInForce,
			strconv.Itoa(t.NumFills),
			t.OpenedAt,
			t.ClosedAt,
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
