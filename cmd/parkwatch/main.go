// Package main implements parkwatch, a command line view of the
// parking-monitoring API: region listing, export filter vocabulary and
// one-shot CSV exports.
//
// Settings resolve in order: flags, then PARKWATCH_* environment
// variables, then ~/.parkwatch.yaml.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
)

var (
	cfgFile  string
	apiURL   string
	apiToken string
	verbose  bool
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "parkwatch",
		Short: "ParkWatch CLI for the parking monitoring API",
		Long: `Inspect monitored parking regions and run CSV exports from the command line.

The API URL and token resolve from flags, PARKWATCH_* environment
variables and ~/.parkwatch.yaml, in that order.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.parkwatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", parkkihubi.DefaultBaseURL, "Base URL of the monitoring API")
	rootCmd.PersistentFlags().StringVar(&apiToken, "api-token", "", "Monitoring API token")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug output including HTTP dumps")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    true,
		})
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
			log.Debug().Msg("debug logging enabled")
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}

		return loadConfig(rootCmd)
	}

	rootCmd.AddCommand(newRegionsCmd())
	rootCmd.AddCommand(newFiltersCmd())
	rootCmd.AddCommand(newExportCmd())

	return rootCmd
}

// loadConfig layers the config file and PARKWATCH_* environment variables
// under the flags. A flag given on the command line always wins.
func loadConfig(root *cobra.Command) error {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".parkwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("PARKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	} else {
		log.Debug().Str("path", v.ConfigFileUsed()).Msg("configuration file loaded")
	}

	if err := v.BindPFlag("api_url", root.PersistentFlags().Lookup("api-url")); err != nil {
		return err
	}
	if err := v.BindPFlag("api_token", root.PersistentFlags().Lookup("api-token")); err != nil {
		return err
	}

	apiURL = v.GetString("api_url")
	apiToken = v.GetString("api_token")
	return nil
}

// newAPIClient builds a monitoring API client from the resolved settings.
func newAPIClient(downloadDir string) *parkkihubi.Client {
	return parkkihubi.NewClient(parkkihubi.ClientConfig{
		BaseURL:     apiURL,
		APIToken:    apiToken,
		DownloadDir: downloadDir,
		Debug:       verbose,
		Logger:      log.Logger,
	})
}
