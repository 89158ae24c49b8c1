package model

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	unknownPrice = "$--"
	unknown      = "--"
)

var printer = message.NewPrinter(language.English)

// Asset is one tracked coin as served by the price feed. Optional numeric
// fields are nil when the feed omitted them.
type Asset struct {
	ID                       string   `json:"id"`
	Name                     string   `json:"name"`
	Symbol                   string   `json:"symbol"`
	Image                    string   `json:"image"`
	CurrentPrice             *float64 `json:"current_price"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	MarketCap                *float64 `json:"market_cap"`
	MarketCapRank            *int     `json:"market_cap_rank"`
	TotalVolume              *float64 `json:"total_volume"`

	// Display strings, derived from the raw fields above by NewAsset.
	FormattedPrice       string `json:"-"`
	MarketCapB           string `json:"-"`
	VolumeM              string `json:"-"`
	PriceChangeFormatted string `json:"-"`
}

// NewAsset returns a copy of raw with every display field recomputed.
func NewAsset(raw Asset) Asset {
	a := raw
	a.FormattedPrice = FormatPrice(raw.CurrentPrice)
	a.MarketCapB = FormatMarketCap(raw.MarketCap)
	a.VolumeM = FormatVolume(raw.TotalVolume)
	a.PriceChangeFormatted = FormatChange(raw.PriceChangePercentage24h)
	return a
}

// Rank renders the market rank, "#--" when unknown.
func (a Asset) Rank() string {
	if a.MarketCapRank == nil {
		return "#--"
	}
	return "#" + strconv.Itoa(*a.MarketCapRank)
}

// Change24h returns the 24h change or NaN when the feed did not report it.
func (a Asset) Change24h() float64 {
	if a.PriceChangePercentage24h == nil {
		return math.NaN()
	}
	return *a.PriceChangePercentage24h
}

// UpperSymbol is the ticker symbol as displayed.
func (a Asset) UpperSymbol() string {
	return strings.ToUpper(a.Symbol)
}

func present(v *float64) bool {
	return v != nil && *v != 0 && !math.IsNaN(*v)
}

// FormatPrice groups thousands and keeps up to three fraction digits, e.g. "$65,000".
func FormatPrice(price *float64) string {
	if !present(price) {
		return unknownPrice
	}
	return "$" + printer.Sprint(number.Decimal(*price, number.MaxFractionDigits(3)))
}

// FormatMarketCap renders the market cap in billions, e.g. "$1.23B".
func FormatMarketCap(marketCap *float64) string {
	if !present(marketCap) {
		return unknown
	}
	return "$" + strconv.FormatFloat(*marketCap/1e9, 'f', 2, 64) + "B"
}

// FormatVolume renders the 24h volume in millions, e.g. "$45.60M".
func FormatVolume(volume *float64) string {
	if !present(volume) {
		return unknown
	}
	return "$" + strconv.FormatFloat(*volume/1e6, 'f', 2, 64) + "M"
}

// FormatChange renders a signed percentage with a direction marker.
func FormatChange(changePct *float64) string {
	if !present(changePct) {
		return unknown
	}
	marker := "📈"
	if *changePct < 0 {
		marker = "📉"
	}
	return marker + " " + strconv.FormatFloat(math.Abs(*changePct), 'f', 2, 64) + "%"
}
