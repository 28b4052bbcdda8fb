package main

import (
	"fmt"

	"github.com/goliatone/go-jackson"
	"github.com/goliatone/go-print"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var configJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the build time configuration",
	Long:  `config prints the values baked in with -ldflags and checks them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := jackson.DefaultConfig()

		if configJSON {
			fmt.Fprintln(cmd.OutOrStdout(), print.MaybeHighlightJSON(cfg))
			return cfg.Validate()
		}

		authority := cfg.GetAuthority()
		if cfg.Authority == "" {
			authority += " (default)"
		}

		data := pterm.TableData{
			{"Setting", "Value"},
			{"client id", orNone(cfg.GetClientID())},
			{"base path", orNone(cfg.GetBasePath())},
			{"authority", authority},
			{"redirect url", orNone(cfg.GetRedirectURL())},
			{"version", jackson.Version},
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		pterm.Println()

		if !cfg.AuthEnabled() {
			pterm.Warning.Println("No client id: sign in runs as a local toggle.")
		}

		if err := cfg.Validate(); err != nil {
			pterm.Error.Println(jackson.ResponseMessage(err))
			return err
		}
		pterm.Success.Println("Configuration is valid")
		return nil
	},
}

func orNone(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func init() {
	configCmd.Flags().BoolVar(&configJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(configCmd)
}
