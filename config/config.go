package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Will be set by go-build
var (
	Version string
	Rev     string
)

const (
	DefaultAPI      = "http://localhost:5000/api"
	envPrefix       = "CRYPTO_TRACKER"
	configName      = "crypto_tracker"
	sessionDirName  = ".crypto-tracker"
	sessionFileName = "session.yml"
	dotEnvFile      = ".env"
	flagConfigFile  = "config-file"
	flagExampleFile = "example-config-file"
	defaultRefresh  = 60
)

const exampleConfig = `# crypto-tracker example config
# Backend base URL, every endpoint is resolved relative to it
api: http://localhost:5000/api
# HTTP request timeout in seconds
timeout: 20
# Background refresh of the price list, in seconds
refresh: 60
# Proxy used when sending HTTP request, eg. "socks5://localhost:1080"
proxy: ""
# Columns shown in the price table
show: [Rank, Symbol, Name, Price, "%Change(24h)", MarketCap, "Volume(24h)", Watched]
# Where the signed-in credential is kept, defaults to $HOME/.crypto-tracker/session.yml
session-file: ""
debug: false
`

// InitLogger sets the log format shared by every command.
func InitLogger() {
	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	}
	logrus.SetFormatter(formatter)
	logrus.SetOutput(colorable.NewColorableStderr()) // For Windows
}

// BindFlags registers the options shared by every command.
func BindFlags(flags *pflag.FlagSet) {
	flags.StringP(flagConfigFile, "c", "", "Config file path, "+
		"by default crypto-tracker uses \"crypto_tracker.yml\" in current directory, $HOME or /etc")
	flags.String(flagExampleFile, "", "Generate example config file to the specified file path, by default it outputs to stdout")
	flags.Lookup(flagExampleFile).NoOptDefVal = "-"
	flags.BoolP("debug", "d", false, "Enable debug mode")
	flags.StringP("api", "a", DefaultAPI, "Base URL of the crypto tracker backend")
	flags.IntP("refresh", "r", defaultRefresh, "Auto refresh the price list on every specified seconds")
	flags.StringSliceP("show", "s", SupportedColumns(), "Only show comma-separated columns")
	flags.StringP("proxy", "p", "", "Proxy used when sending HTTP request \n(eg. "+
		"\"http://localhost:7777\", \"https://localhost:7777\", \"socks5://localhost:1080\")")
	flags.IntP("timeout", "t", 20, "HTTP request timeout in seconds")
	flags.String("session-file", "", "File that keeps the signed-in credential")
	flags.StringP("output", "o", OutputTable, "Output format of one-shot listings, table or csv")
	flags.SortFlags = false
}

// Load merges flags, environment, .env and the config file, in that order
// of precedence.
func Load(v *viper.Viper, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(dotEnvFile); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Error reading %s: %v", dotEnvFile, err)
	}

	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configName) // name of config file (without extension)
	v.AddConfigPath(".")        // path to look for the config file in
	v.AddConfigPath("$HOME")    // optionally look for config in the HOME directory
	v.AddConfigPath("/etc")     // and /etc
	if configFile := v.GetString(flagConfigFile); configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logrus.Warnf("Error reading config file: %v", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %q", v.ConfigFileUsed())
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = defaultSessionFile()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.Debugln("Using config file:", v.ConfigFileUsed())
	return &cfg, nil
}

// ExampleConfigPath reports where --example-config-file asked to write, if set.
func ExampleConfigPath(flags *pflag.FlagSet) string {
	path, _ := flags.GetString(flagExampleFile)
	return path
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		logrus.Debugf("Cannot resolve home directory, keeping session in working directory: %v", err)
		return filepath.Join(sessionDirName, sessionFileName)
	}
	return filepath.Join(home, sessionDirName, sessionFileName)
}

func WriteExampleConfig(fpath string) error {
	fout := os.Stdout
	if fpath != "-" {
		if _, err := os.Stat(fpath); err == nil {
			logrus.Warnf("%s already exists, skipping", fpath)
			return nil
		}
		f, err := os.Create(fpath)
		if err != nil {
			return errors.Wrapf(err, "create config file %s", fpath)
		}
		defer f.Close()
		fout = f
	}
	if _, err := fout.WriteString(exampleConfig); err != nil {
		return errors.Wrapf(err, "write config file %s", fpath)
	}
	if fout != os.Stdout {
		logrus.Infof("Write example config file to %s", fpath)
	}
	return nil
}

func VersionString() string {
	s := fmt.Sprintf("Version %s", Version)
	if Rev != "" {
		s += fmt.Sprintf(", build %s", Rev)
	}
	return s
}
