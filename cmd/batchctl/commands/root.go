package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries state shared by the subcommands.
type app struct {
	v      *viper.Viper
	cfg    *Config
	logger *slog.Logger
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{v: newViper()}
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "batchctl",
		Short:         "Run batches of items against a processing endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.v, configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Logger(cmd.ErrOrStderr())
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ./batchctl.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("store-driver", "", "record store driver: sqlite or postgres")
	flags.String("store-dsn", "", "record store DSN")
	bindFlags(a.v, flags, map[string]string{
		"log.level":    "log-level",
		"log.format":   "log-format",
		"store.driver": "store-driver",
		"store.dsn":    "store-dsn",
	})

	// Add subcommands
	rootCmd.AddCommand(
		newRunCommand(a),
		newJobsCommand(a),
		newRunsCommand(a),
	)

	return rootCmd
}
