package writer

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uilive"
	"github.com/mattn/go-colorable"
	"github.com/olekukonko/tablewriter"
	"github.com/polyrabbit/crypto-tracker/config"
	"github.com/polyrabbit/crypto-tracker/model"
	"github.com/polyrabbit/crypto-tracker/watchlist"
)

const watchedMark = "★"

var (
	faint = color.New(color.Faint).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

// Frame is everything one dashboard redraw shows.
type Frame struct {
	Assets    []model.Asset
	Search    string
	Watchlist watchlist.View
	Missing   []model.WatchItem
	Members   map[string]struct{}
	User      string
	State     string
	Err       error
	UpdatedAt time.Time
	Notice    string
}

type tableWriter struct {
	*uilive.Writer
	columns []string
}

// NewTableWriter draws frames in place on stdout.
func NewTableWriter(columns []string) *tableWriter {
	tw := &tableWriter{Writer: uilive.New(), columns: columns}
	tw.Writer.Out = colorable.NewColorableStdout() // For Windows
	return tw
}

func (tw *tableWriter) Render(f Frame) {
	title := "Top Cryptocurrencies"
	if f.Search != "" {
		title += fmt.Sprintf(" matching %q", f.Search)
	}
	fmt.Fprintln(tw, bold(title))
	if len(f.Assets) == 0 {
		fmt.Fprintln(tw, faint(emptyListText(f)))
	} else {
		renderTable(tw, f.Assets, tw.columns, f.Members)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, bold("Watchlist"))
	switch {
	case !f.Watchlist.Authenticated:
		fmt.Fprintln(tw, faint("Sign in to keep a watchlist (crypto-tracker login)"))
	case len(f.Watchlist.Assets) == 0 && len(f.Missing) == 0:
		fmt.Fprintln(tw, faint("Your watchlist is empty, type +<coin id> to add one"))
	default:
		if len(f.Watchlist.Assets) > 0 {
			renderTable(tw, f.Watchlist.Assets, tw.columns, f.Members)
		}
		if len(f.Missing) > 0 {
			names := make([]string, len(f.Missing))
			for i, w := range f.Missing {
				names[i] = w.CoinID
			}
			fmt.Fprintln(tw, faint("Not in the current price list: "+strings.Join(names, ", ")))
		}
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, statusLine(f))
	if f.Notice != "" {
		fmt.Fprintln(tw, color.YellowString(f.Notice))
	}
	fmt.Fprintln(tw, faint("r refresh | /term search | / clear | +id add | -id remove | q quit"))
	tw.Flush()
}

func emptyListText(f Frame) string {
	switch {
	case f.Search != "":
		return "No coins match your search"
	case f.Err != nil:
		return "No prices yet"
	default:
		return "Loading prices..."
	}
}

func statusLine(f Frame) string {
	var parts []string
	if f.User != "" {
		parts = append(parts, "Signed in as "+color.CyanString(f.User))
	}
	if !f.UpdatedAt.IsZero() {
		parts = append(parts, "Updated "+f.UpdatedAt.Local().Format("15:04:05"))
	}
	if f.State != "" {
		parts = append(parts, faint(f.State))
	}
	line := strings.Join(parts, faint(" | "))
	if f.Err != nil {
		line += "\n" + color.RedString(f.Err.Error())
	}
	return line
}

// WriteTable renders assets once, for non-interactive commands.
func WriteTable(w io.Writer, assets []model.Asset, columns []string, members map[string]struct{}) {
	renderTable(w, assets, columns, members)
}

func newTable(w io.Writer, columns []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	formattedHeaders := make([]string, len(columns))
	for i, hdr := range columns {
		formattedHeaders[i] = color.YellowString(hdr)
	}
	table.SetHeader(formattedHeaders)
	table.SetRowLine(true)
	table.SetCenterSeparator(faint("-"))
	table.SetColumnSeparator(faint("|"))
	table.SetRowSeparator(faint("-"))
	return table
}

func renderTable(w io.Writer, assets []model.Asset, columns []string, members map[string]struct{}) {
	table := newTable(w, columns)
	for _, a := range assets {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = cell(a, col, members)
		}
		table.Append(row)
	}
	table.Render()
}

func cell(a model.Asset, col string, members map[string]struct{}) string {
	switch strings.ToLower(col) {
	case strings.ToLower(config.ColumnRank):
		return a.Rank()
	case strings.ToLower(config.ColumnSymbol):
		return a.UpperSymbol()
	case strings.ToLower(config.ColumnName):
		return a.Name
	case strings.ToLower(config.ColumnPrice):
		return a.FormattedPrice
	case strings.ToLower(config.ColumnChange24hPct):
		return highlightChange(a)
	case strings.ToLower(config.ColumnMarketCap):
		return a.MarketCapB
	case strings.ToLower(config.ColumnVolume):
		return a.VolumeM
	case strings.ToLower(config.ColumnWatched):
		if _, ok := members[a.ID]; ok {
			return color.YellowString(watchedMark)
		}
		return ""
	default:
		return ""
	}
}

func highlightChange(a model.Asset) string {
	changePct := a.Change24h()
	switch {
	case math.IsNaN(changePct) || changePct == 0:
		return faint(a.PriceChangeFormatted)
	case changePct > 0:
		return color.GreenString(a.PriceChangeFormatted)
	default:
		return color.RedString(a.PriceChangeFormatted)
	}
}
