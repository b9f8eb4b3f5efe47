// File: cmd/pilot/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/xkilldash9x/pilot-cli/cmd"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
)

const panicLogFile = "panic.log"

const banner = `
  pilot %s
  Drives a browser toward a goal, one screenshot at a time.
  Type a command (e.g. run "find the weather in Paris"), or exit.

`

// Function variables so tests can stub process-level effects.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	newRootCmd  = cmd.NewRootCommand
)

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			// cmd.Execute has already reported the error.
			if errors.Is(err, context.Canceled) {
				osExit(0)
			} else {
				osExit(1)
			}
		}
		return
	}

	if err := runInteractive(ctx, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
}

// runInteractive reads commands line by line until EOF or exit.
func runInteractive(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	fmt.Fprintf(out, banner, cmd.Version)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "pilot > ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		executeInteractiveCommand(ctx, line, out, errOut)
		if ctx.Err() != nil {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Exiting pilot.")
	return nil
}

// executeInteractiveCommand runs one line of the shell on a fresh command
// tree so flag values don't carry over between lines.
func executeInteractiveCommand(ctx context.Context, line string, out, errOut io.Writer) {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(splitArgs(line))
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(errOut, "Error: Command panicked: %v\n", r)
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// The shell keeps going after a failed command.
		fmt.Fprintln(errOut, "Error:", err)
	}
}

// splitArgs splits a shell line on whitespace, keeping single- or
// double-quoted runs together so goals can contain spaces.
func splitArgs(line string) []string {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, current.String())
	}
	return args
}

// handlePanic records a crash to panic.log before exiting.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()

		panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
		if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(1)
			return
		}

		fmt.Fprintf(os.Stderr, "\nCRASH DETECTED. Details logged to %s\n", panicLogFile)
		osExit(2)
	}
}
