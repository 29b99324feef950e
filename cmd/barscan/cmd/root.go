package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "barscan",
	Short: "Live barcode scanning for camera frames and images",
	Long: `barscan decodes 1D and 2D barcodes from a stream of camera frames,
from directories of images, or from uploaded files.

This tool provides:
- Live scanning from a V4L2 webcam or a replayed image directory
- Pause, center crop, torch and frame dump controls
- Frame dumps to a local directory or Azure Blob Storage
- One-shot decoding of image files with text, JSON, YAML or CSV output
- An HTTP and WebSocket surface for results and session control

Examples:
  barscan scan --device /dev/video0
  barscan scan --dir ./frames --crop=false
  barscan image label.png --format json
  barscan serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags that apply to all commands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/barscan, /etc/barscan)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	// Reader options are shared by every command that decodes.
	rootCmd.PersistentFlags().StringSlice("formats", nil, "barcode formats to look for (default: all), e.g. qr,ean-13")
	rootCmd.PersistentFlags().Bool("try-harder", false, "spend more time looking for a symbol")
	rootCmd.PersistentFlags().Bool("try-rotate", false, "also try the frame rotated by 90 degrees")
	rootCmd.PersistentFlags().Bool("try-invert", false, "also try the inverted frame (light on dark)")
	rootCmd.PersistentFlags().Bool("try-downscale", false, "also try a half-size copy of large frames")

	bindFlags(rootCmd.PersistentFlags().Lookup, []flagBinding{
		{"verbose", "verbose"},
		{"log_level", "log-level"},
		{"reader.formats", "formats"},
		{"reader.try_harder", "try-harder"},
		{"reader.try_rotate", "try-rotate"},
		{"reader.try_invert", "try-invert"},
		{"reader.try_downscale", "try-downscale"},
	})

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}

		var logLevel slog.Level
		if globalConfig.Verbose {
			logLevel = slog.LevelDebug
		} else {
			switch globalConfig.LogLevel {
			case "debug":
				logLevel = slog.LevelDebug
			case "warn":
				logLevel = slog.LevelWarn
			case "error":
				logLevel = slog.LevelError
			default:
				logLevel = slog.LevelInfo
			}
		}

		// Logs go to stderr so result output on stdout stays machine readable.
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the global configuration, re-read so bound CLI flags
// are included.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		initConfig()
	}

	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

type flagBinding struct {
	key  string
	flag string
}

// bindFlags binds flags to viper configuration keys.
func bindFlags(lookup func(string) *pflag.Flag, bindings []flagBinding) {
	for _, b := range bindings {
		if err := viper.BindPFlag(b.key, lookup(b.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", b.flag, err))
		}
	}
}
