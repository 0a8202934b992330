package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AxelotlZoons/Word/internal/config"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "word",
	Short:         "Count keywords spoken in a live audio stream",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default $XDG_CONFIG_HOME/word/config.toml)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(
		runCmd(),
		statusCmd(),
		countsCmd(),
		stopCmd(),
		versionCmd(),
		keywordsCmd(),
		doctorCmd(),
		configureCmd(),
		resolveCmd(),
	)
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error reading .env file: %s\n", err)
	}
	viper.SetEnvPrefix("word")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupLogging() error {
	level := viper.GetString("log_level")
	if level == "" {
		if cfg, err := config.Load(viper.GetString("config")); err == nil {
			level = cfg.Log.Level
		}
	}
	if level == "" {
		return nil
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	log.SetLevel(parsed)
	return nil
}

// loadConfig reads the config file and applies flag and WORD_* overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, v)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if v.IsSet("log_level") && v.GetString("log_level") != "" {
		cfg.Log.Level = v.GetString("log_level")
	}
	if v.IsSet("source") {
		cfg.Source.URL = v.GetString("source")
	}
	if v.IsSet("no_resolve") && v.GetBool("no_resolve") {
		cfg.Source.Resolve = false
	}
	if v.IsSet("deepgram_api_key") && v.GetString("deepgram_api_key") != "" {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]config.ProviderConfig)
		}
		cfg.Providers["deepgram"] = config.ProviderConfig{APIKey: v.GetString("deepgram_api_key")}
	}
	if v.IsSet("keywords") {
		cfg.Spotter.Keywords = v.GetStringSlice("keywords")
	}
	if v.IsSet("threshold") {
		cfg.Spotter.ConfidenceThreshold = v.GetFloat64("threshold")
	}
	if v.IsSet("counts_file") {
		cfg.Output.CountsFile = v.GetString("counts_file")
	}
	if v.IsSet("http_addr") {
		cfg.Output.HTTPAddr = v.GetString("http_addr")
	}
	if v.IsSet("no_transcript") && v.GetBool("no_transcript") {
		cfg.Output.Transcript = false
	}
}
