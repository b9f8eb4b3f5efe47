// File: cmd/tools.go
package cmd

import (
	"fmt"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pilot-cli/internal/llmclient"
	"github.com/xkilldash9x/pilot-cli/internal/service"
)

// newToolsCmd creates the `tools` command.
func newToolsCmd(a *app) *cobra.Command {
	var (
		format string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Prints the action declarations offered to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set := service.NewRegistry(a.cfg.Browser()).Set()
			decls := set.All()
			if !all {
				decls = set.Without(a.cfg.LLM().ExcludedFunctions...)
			}

			var payload any
			switch format {
			case "json":
				payload = decls
			case "gemini":
				payload = llmclient.FunctionDeclarations(decls)
			default:
				return fmt.Errorf("unknown format %q (want json or gemini)", format)
			}

			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode declarations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json (JSON Schema) or gemini (function declarations)")
	cmd.Flags().BoolVar(&all, "all", false, "include excluded functions")
	return cmd
}
