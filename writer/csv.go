package writer

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/polyrabbit/crypto-tracker/model"
)

type csvRow struct {
	ID          string `csv:"id"`
	Rank        string `csv:"rank"`
	Symbol      string `csv:"symbol"`
	Name        string `csv:"name"`
	Price       string `csv:"current_price"`
	Change24h   string `csv:"price_change_percentage_24h"`
	MarketCap   string `csv:"market_cap"`
	TotalVolume string `csv:"total_volume"`
	Watched     bool   `csv:"watched"`
}

// WriteCSV writes the raw feed values, one asset per line. Missing values
// are empty cells.
func WriteCSV(w io.Writer, assets []model.Asset, members map[string]struct{}) error {
	rows := make([]*csvRow, 0, len(assets))
	for _, a := range assets {
		_, watched := members[a.ID]
		row := &csvRow{
			ID:          a.ID,
			Symbol:      a.UpperSymbol(),
			Name:        a.Name,
			Price:       formatRaw(a.CurrentPrice),
			Change24h:   formatRaw(a.PriceChangePercentage24h),
			MarketCap:   formatRaw(a.MarketCap),
			TotalVolume: formatRaw(a.TotalVolume),
			Watched:     watched,
		}
		if a.MarketCapRank != nil {
			row.Rank = strconv.Itoa(*a.MarketCapRank)
		}
		rows = append(rows, row)
	}
	return gocsv.Marshal(rows, w)
}

func formatRaw(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
