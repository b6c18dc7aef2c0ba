// Command botservice runs the SIPPI payment and licence renewal bot.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jagmitg/botservice/pkg/config"
	"github.com/jagmitg/botservice/runtime/logger"
	"github.com/jagmitg/botservice/runtime/version"
)

const (
	flagConfig   = "config"
	flagEnvFile  = "env-file"
	flagLogLevel = "log-level"
	flagVerbose  = "verbose"

	envPrefix = "BOTSERVICE"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "botservice",
		Short:         "SIPPI payment and licence renewal bot",
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `botservice hosts the SIPPI conversational bot. It answers payment
questions and walks users through licence renewal over HTTP, websockets
or a local console session.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFiles(v.GetStringSlice(flagEnvFile)); err != nil {
				return err
			}
			if v.GetBool(flagVerbose) {
				logger.SetVerbose(true)
			} else if level := v.GetString(flagLogLevel); level != "" {
				logger.SetLevel(logger.ParseLevel(level))
			}
			return nil
		},
	}
	root.SetVersionTemplate(version.Get().String() + "\n")

	flags := root.PersistentFlags()
	flags.StringP(flagConfig, "c", "", "BotConfig manifest (defaults and environment only when empty)")
	flags.StringSlice(flagEnvFile, nil, ".env files to load (./.env when empty)")
	flags.String(flagLogLevel, "", "Log level: trace, debug, info, warn or error")
	flags.BoolP(flagVerbose, "v", false, "Enable debug logging")
	for _, name := range []string{flagConfig, flagEnvFile, flagLogLevel, flagVerbose} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newServeCmd(v),
		newChatCmd(v),
		newValidateCmd(v),
		newVersionCmd(),
	)
	return root
}

func loadEnvFiles(files []string) error {
	if err := config.LoadEnv(files...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// loadConfig reads the manifest named by --config, or resolves defaults and
// environment overrides when no manifest is given. The manifest's logging
// section is applied unless --log-level or --verbose was set.
func loadConfig(v *viper.Viper) (*config.BotConfig, error) {
	var (
		cfg *config.BotConfig
		err error
	)
	if path := v.GetString(flagConfig); path != "" {
		cfg, err = config.LoadConfig(path)
	} else {
		cfg, err = config.Resolve(os.LookupEnv)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Logging != nil && v.GetString(flagLogLevel) == "" && !v.GetBool(flagVerbose) {
		if err := logger.Configure(cfg.Logging.ToLoggerSpec()); err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
	}
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
