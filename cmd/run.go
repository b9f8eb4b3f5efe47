// File: cmd/run.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/service"
)

// errRunFailed is returned when the agent ended in ERROR, so the process
// exits non-zero.
var errRunFailed = errors.New("agent run ended in error")

type runOptions struct {
	url         string
	maxTurns    int
	autoApprove bool
	headless    bool
	output      string
	quiet       bool
}

// newRunCmd creates the `run` command.
func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Runs the agent until the goal is answered or the turn limit is hit",
		Example: `  pilot run "What is today's featured article on Wikipedia about?" --url https://en.wikipedia.org/wiki/Main_Page
  pilot run "Find the cheapest flight from SFO to JFK next Friday" --max-turns 40 --output result.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(opts.headless)
			}
			if opts.autoApprove {
				cfg.SetAgentAutoApprove(true)
			}
			req := schemas.RunRequest{
				Goal:       strings.Join(args, " "),
				InitialURL: opts.url,
				MaxTurns:   opts.maxTurns,
			}
			return runGoal(cmd, a.factory, cfg, req, opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "page to open before the first turn (default: agent.initial_url)")
	cmd.Flags().IntVar(&opts.maxTurns, "max-turns", schemas.ConfiguredMaxTurns, "maximum model turns (default: agent.max_turns)")
	cmd.Flags().BoolVar(&opts.autoApprove, "auto-approve", false, "approve actions the model flags for confirmation without asking")
	cmd.Flags().BoolVar(&opts.headless, "headless", true, "run the browser without a window")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the result as JSON to this file, and the final screenshot next to it")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "print only the final message")
	return cmd
}

func runGoal(cmd *cobra.Command, factory service.ComponentFactory, cfg config.Interface, req schemas.RunRequest, opts *runOptions) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()
	out := cmd.OutOrStdout()

	var observer agent.Observer
	if !opts.quiet {
		observer = progressPrinter(out)
	}
	policy := service.PolicyFromConfig(cfg.Agent(), cmd.InOrStdin(), cmd.ErrOrStderr())
	if closer, ok := policy.(io.Closer); ok {
		defer closer.Close()
	}

	components, err := factory.Create(ctx, cfg, service.Options{Policy: policy, Observer: observer}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize agent components: %w", err)
	}
	defer components.Shutdown()

	result, err := components.Agent.Run(ctx, req)
	if err != nil {
		return err
	}

	if !opts.quiet {
		fmt.Fprintf(out, "\nFinished: %s after %d turn(s), %d action(s).\n",
			result.TerminationReason, result.Turns, len(result.ActionHistory))
	}
	fmt.Fprintln(out, result.FinalMessage)

	if opts.output != "" {
		if err := writeArtifacts(opts.output, result); err != nil {
			return err
		}
		logger.Info("Run artifacts written.", zap.String("path", opts.output))
	}

	if result.TerminationReason == schemas.TerminationError {
		return errRunFailed
	}
	return nil
}

// progressPrinter reports turns and actions as they happen.
func progressPrinter(w io.Writer) agent.Observer {
	return agent.ObserverFunc(func(e agent.Event) {
		switch e.Type {
		case agent.EventRunStarted:
			fmt.Fprintf(w, "Run %s: %s\n", e.RunID, e.Goal)
		case agent.EventModelTurn:
			if e.Text != "" {
				fmt.Fprintf(w, "[turn %d] %s\n", e.Turn, e.Text)
			}
		case agent.EventActionDispatched:
			if e.Record == nil {
				return
			}
			status := "ok"
			switch {
			case e.Record.Result.Error != "":
				status = "error: " + e.Record.Result.Error
			case e.Record.Result.Warning != "":
				status = "warning: " + e.Record.Result.Warning
			}
			fmt.Fprintf(w, "[turn %d]   %s %s -> %s\n", e.Turn, e.Record.Name, formatArgs(e.Record.Args), status)
		}
	})
}

func formatArgs(args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(b)
}

// writeArtifacts writes the result JSON to path and the final screenshot as
// a PNG with the same base name.
func writeArtifacts(path string, result *schemas.AgentRunResult) error {
	path, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if result.FinalObservation != nil && len(result.FinalObservation.Screenshot) > 0 {
		png := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
		if err := os.WriteFile(png, result.FinalObservation.Screenshot, 0o644); err != nil {
			return fmt.Errorf("failed to write screenshot: %w", err)
		}
	}
	return nil
}
