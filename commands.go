package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	"github.com/polyrabbit/crypto-tracker/config"
	"github.com/polyrabbit/crypto-tracker/model"
	"github.com/polyrabbit/crypto-tracker/session"
	"github.com/polyrabbit/crypto-tracker/watchlist"
	"github.com/polyrabbit/crypto-tracker/writer"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	stdout = colorable.NewColorableStdout() // For Windows
	stdin  = bufio.NewReader(os.Stdin)
)

func newTopCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the top coins once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if err := a.prices.Refresh(cmd.Context(), true); err != nil {
				return err
			}
			a.store.Restore(cmd.Context())
			assets := watchlist.Filter(a.prices.Snapshot().Assets, search)
			if strings.EqualFold(cfg.Output, config.OutputCSV) {
				return writer.WriteCSV(os.Stdout, assets, a.store.Members())
			}
			writer.WriteTable(stdout, assets, cfg.Columns, a.store.Members())
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Only list coins whose name or symbol contains this")
	return cmd
}

func newCoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "coin <id>",
		Short: "Print the details of one coin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			raw, err := a.client.Coin(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				return errors.Wrap(err, "format coin details")
			}
			fmt.Fprintln(stdout, out.String())
			return nil
		},
	}
}

func newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if password == "" {
				if password, err = promptPassword("Password: "); err != nil {
					return err
				}
			}
			sess, err := a.store.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Signed in as %s\n", color.CyanString(sess.User.Username))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password, prompted when omitted")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var reg session.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if reg.Password == "" {
				if reg.Password, err = promptPassword("Password: "); err != nil {
					return err
				}
				if reg.ConfirmPassword, err = promptPassword("Confirm password: "); err != nil {
					return err
				}
			} else {
				reg.ConfirmPassword = reg.Password
			}
			sess, err := a.store.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Welcome, %s\n", color.CyanString(sess.User.Username))
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Username, "username", "", "Display name, at least 3 characters")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Account password, prompted when omitted")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			a.store.Logout()
			fmt.Fprintln(stdout, "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			sess := a.store.Restore(cmd.Context())
			if sess == nil {
				fmt.Fprintln(stdout, "Not signed in")
				return nil
			}
			fmt.Fprintf(stdout, "%s <%s>, %d coins in watchlist\n",
				color.CyanString(sess.User.Username), sess.User.Email, len(sess.User.Watchlist))
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage your watchlist",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print your watchlist with current prices",
			Args:  cobra.NoArgs,
			RunE:  runWatchList,
		},
		&cobra.Command{
			Use:   "add <id>",
			Short: "Add a coin, by id or symbol",
			Args:  cobra.ExactArgs(1),
			RunE:  runWatchAdd,
		},
		&cobra.Command{
			Use:     "rm <id>",
			Aliases: []string{"remove"},
			Short:   "Remove a coin",
			Args:    cobra.ExactArgs(1),
			RunE:    runWatchRemove,
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Reload the watchlist stored on the server",
			Args:  cobra.NoArgs,
			RunE:  runWatchSync,
		},
	)
	return cmd
}

// signedInApp builds the app and restores the session, failing when nobody
// is signed in.
func signedInApp(cmd *cobra.Command) (*app, *model.Session, error) {
	a, err := newApp(cfg)
	if err != nil {
		return nil, nil, err
	}
	sess := a.store.Restore(cmd.Context())
	if sess == nil {
		return nil, nil, errors.New("not signed in, run crypto-tracker login first")
	}
	return a, sess, nil
}

func runWatchList(cmd *cobra.Command, args []string) error {
	a, sess, err := signedInApp(cmd)
	if err != nil {
		return err
	}
	if err := a.prices.Refresh(cmd.Context(), true); err != nil {
		return err
	}
	view := watchlist.Derive(a.prices.Snapshot(), sess)
	if len(view.Assets) == 0 && len(sess.User.Watchlist) == 0 {
		fmt.Fprintln(stdout, "Your watchlist is empty")
		return nil
	}
	if strings.EqualFold(cfg.Output, config.OutputCSV) {
		return writer.WriteCSV(os.Stdout, view.Assets, sess.Members())
	}
	writer.WriteTable(stdout, view.Assets, cfg.Columns, sess.Members())
	for _, w := range view.Missing(sess) {
		fmt.Fprintf(stdout, "%s is not in the current price list\n", w.CoinID)
	}
	return nil
}

func runWatchAdd(cmd *cobra.Command, args []string) error {
	a, _, err := signedInApp(cmd)
	if err != nil {
		return err
	}
	asset := model.Asset{ID: args[0], Name: args[0]}
	if err := a.prices.Refresh(cmd.Context(), true); err == nil {
		if found, ok := a.prices.Snapshot().Resolve(args[0]); ok {
			asset = found
		}
	}
	if err := a.actions.Add(cmd.Context(), asset); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Added %s to your watchlist\n", color.CyanString(asset.Name))
	return nil
}

func runWatchRemove(cmd *cobra.Command, args []string) error {
	a, _, err := signedInApp(cmd)
	if err != nil {
		return err
	}
	if err := a.actions.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Removed %s from your watchlist\n", color.CyanString(args[0]))
	return nil
}

func runWatchSync(cmd *cobra.Command, args []string) error {
	a, _, err := signedInApp(cmd)
	if err != nil {
		return err
	}
	if err := a.actions.Sync(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d coins in your watchlist\n", len(a.store.Members()))
	return nil
}

func promptPassword(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(password), errors.Wrap(err, "read password")
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, "read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
