package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jagmitg/botservice/internal/bot"
	"github.com/jagmitg/botservice/runtime/nlu"
	"github.com/jagmitg/botservice/runtime/statestore"
)

// errValidation is returned when validate finds blocking problems.
var errValidation = errors.New("validation failed")

func newValidateCmd(v *viper.Viper) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the manifest, content and branch tables",
		Long: `validate loads the configuration, then checks every branch table
against the intents the recognizer publishes and the registered dialogs.
It exits non-zero on errors, and on warnings with --strict.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			content := bot.DefaultContent(cfg.Content.EscalationPhone, cfg.Content.EscalationHours)

			mem := statestore.NewMemoryStore()
			b, err := bot.New(nlu.Unconfigured{}, mem, mem, bot.WithContent(content))
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				return errValidation
			}

			result := bot.ValidateTables(content, b.DialogIDs())
			for _, e := range result.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if result.HasErrors() || (strict && len(result.Warnings) > 0) {
				return errValidation
			}
			fmt.Fprintf(out, "ok: %s (%d dialogs, nlu %s)\n", cfg.Name, len(b.DialogIDs()), cfg.NLU.Type)
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")
	return cmd
}
