package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/polyrabbit/crypto-tracker/api"
	"github.com/polyrabbit/crypto-tracker/cache"
	"github.com/polyrabbit/crypto-tracker/config"
	"github.com/polyrabbit/crypto-tracker/dashboard"
	"github.com/polyrabbit/crypto-tracker/event"
	"github.com/polyrabbit/crypto-tracker/http"
	"github.com/polyrabbit/crypto-tracker/session"
	"github.com/polyrabbit/crypto-tracker/visibility"
	"github.com/polyrabbit/crypto-tracker/watchlist"
	"github.com/polyrabbit/crypto-tracker/writer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfg *config.Config

// app holds the components one command works with. It is built once per
// process after the config is loaded.
type app struct {
	client  *api.Client
	bus     *event.Bus
	store   *session.Store
	prices  *cache.PriceCache
	actions *watchlist.Actions
}

func newApp(cfg *config.Config) (*app, error) {
	tokens := session.NewFileTokenStore(cfg.SessionFile)
	httpClient, err := http.New(cfg, tokens)
	if err != nil {
		return nil, err
	}
	client := api.New(httpClient)
	bus := event.NewBus()
	store := session.NewStore(client, tokens, bus)

	opts := cache.DefaultOptions()
	opts.RefreshPeriod = cfg.RefreshInterval()
	return &app{
		client:  client,
		bus:     bus,
		store:   store,
		prices:  cache.New(client, bus, opts),
		actions: watchlist.NewActions(client, store),
	}, nil
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "crypto-tracker",
		Short:         "Track top cryptocurrency prices and your watchlist in the terminal",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if fpath := config.ExampleConfigPath(cmd.Flags()); fpath != "" {
				if err := config.WriteExampleConfig(fpath); err != nil {
					return err
				}
				os.Exit(0)
			}
			var err error
			cfg, err = config.Load(viper.GetViper(), cmd.Flags())
			return err
		},
		RunE: runDashboard,
	}
	rootCmd.SetVersionTemplate(config.VersionString() + "\n")
	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newTopCmd(),
		newCoinCmd(),
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newWatchCmd(),
	)
	return rootCmd
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	logrus.Infof("Auto refresh on every %d seconds", cfg.Refresh)

	tw := writer.NewTableWriter(cfg.Columns)
	logrus.SetOutput(tw)
	defer logrus.SetOutput(colorable.NewColorableStderr())

	go a.store.Restore(ctx)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		a.prices.Run(ctx, visibility.Terminal(ctx))
	}()

	err = dashboard.New(a.prices, a.store, a.actions, a.bus, tw).Run(ctx, os.Stdin)
	stop()
	<-pollDone
	a.bus.Wait()
	return err
}

func main() {
	config.InitLogger()
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logrus.Fatalf("%s", err)
	}
}
