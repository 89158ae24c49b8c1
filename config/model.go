package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	ColumnRank         = "Rank"
	ColumnSymbol       = "Symbol"
	ColumnName         = "Name"
	ColumnPrice        = "Price"
	ColumnChange24hPct = "%Change(24h)"
	ColumnMarketCap    = "MarketCap"
	ColumnVolume       = "Volume(24h)"
	ColumnWatched      = "Watched"
)

const (
	OutputTable = "table"
	OutputCSV   = "csv"
)

func SupportedColumns() []string {
	return []string{ColumnRank, ColumnSymbol, ColumnName, ColumnPrice, ColumnChange24hPct, ColumnMarketCap, ColumnVolume, ColumnWatched}
}

type Config struct {
	API         string   `mapstructure:"api"`
	Timeout     int      `mapstructure:"timeout"`
	Proxy       string   `mapstructure:"proxy"`
	Refresh     int      `mapstructure:"refresh"`
	Columns     []string `mapstructure:"show"`
	Debug       bool     `mapstructure:"debug"`
	SessionFile string   `mapstructure:"session-file"`
	Output      string   `mapstructure:"output"`
}

// RefreshInterval is the background polling period of the price list.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh) * time.Second
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.API)
	if err != nil {
		return fmt.Errorf("invalid api url %q: %w", c.API, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api url %q: scheme must be http or https", c.API)
	}
	if c.Refresh <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %d", c.Refresh)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.Timeout)
	}
	for _, col := range c.Columns {
		if !isSupportedColumn(col) {
			return fmt.Errorf("unknown column: %s", col)
		}
	}
	switch strings.ToLower(c.Output) {
	case "", OutputTable, OutputCSV:
	default:
		return fmt.Errorf("unknown output format: %s", c.Output)
	}
	return nil
}

func isSupportedColumn(col string) bool {
	for _, c := range SupportedColumns() {
		if strings.EqualFold(c, col) {
			return true
		}
	}
	return false
}
