// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/service"
)

// envPrefix namespaces environment overrides, e.g. PILOT_AGENT_MAX_TURNS.
const envPrefix = "PILOT"

// app is the state shared by one command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	factory service.ComponentFactory
}

// NewRootCommand returns a fresh command tree wired to production components.
// A fresh tree per invocation keeps flag values from leaking between
// commands in interactive mode.
func NewRootCommand() *cobra.Command {
	return newRootCommand(service.NewComponentFactory())
}

func newRootCommand(factory service.ComponentFactory) *cobra.Command {
	a := &app{v: viper.New(), factory: factory}

	rootCmd := &cobra.Command{
		Use:   "pilot",
		Short: "Pilot drives a web browser with a Gemini model to accomplish goals.",
		// Version is dynamically set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This runs before any command, setting up config and logging.
			if err := a.initializeConfig(); err != nil {
				return err
			}
			// Console logs go to stderr so stdout carries only command output.
			observability.Initialize(a.cfg.Logger(), zapcore.Lock(os.Stderr))
			observability.GetLogger().Debug("Starting pilot", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.pilot/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newToolsCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line and logs the failure, if any.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Command aborted by signal.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
			observability.GetLogger().Debug("Command execution failed", zap.Error(err))
		}
		observability.Sync()
		return err
	}
	observability.Sync()
	return nil
}

// initializeConfig reads the config file and environment variables into a
// validated Config.
func (a *app) initializeConfig() error {
	v := a.v
	config.SetDefaults(v)

	if a.cfgFile != "" {
		path, err := config.ExpandPath(a.cfgFile)
		if err != nil {
			return err
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if dir, err := config.ConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || a.cfgFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	if cfg.LoggerCfg.LogFile != "" {
		if cfg.LoggerCfg.LogFile, err = config.ExpandPath(cfg.LoggerCfg.LogFile); err != nil {
			return err
		}
		if dir := filepath.Dir(cfg.LoggerCfg.LogFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
	}
	a.cfg = cfg
	return nil
}
