package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"

	"github.com/mklimuk/airmon/pkg/config"
)

func TestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run unit tests",
		Long:  "Run unit tests of the drivers, the polling loop and the sinks. No hardware is needed; the bus is mocked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Test()
			if err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
	return cmd
}

func LintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Run linting",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Lint()
			if err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
	return cmd
}

func IntegrationTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Run tests against the sensors of an airmon config",
		Long: `Run the integration suite against real hardware. The config file names the
adapter and the sensors to exercise; it is validated first and handed to the
tests through AIRMON_CONFIG.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %w", err)
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if len(cfg.Sensors) == 0 {
				return fmt.Errorf("%s lists no sensors", path)
			}
			for _, s := range cfg.Sensors {
				slog.Info("sensor under test", "name", s.Name, "model", s.Model, "adapter", cfg.Adapter, "device", cfg.Device)
			}
			if err := os.Setenv("AIRMON_CONFIG", path); err != nil {
				return err
			}
			err = test.Integ()
			if err != nil {
				return fmt.Errorf("failed to run integration testing: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("config", "airmon.yaml", "airmon config describing the attached sensors")
	return cmd
}

// CheckConfigCmd validates airmon config files, e.g. before shipping them to
// a board.
func CheckConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-config <file>...",
		Short: "Validate airmon config files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			show, err := cmd.Flags().GetBool("print")
			if err != nil {
				return fmt.Errorf("could not get print flag: %w", err)
			}
			var failed int
			for _, path := range args {
				cfg, err := config.Load(path)
				if err != nil {
					slog.Error("invalid config", "file", path, "error", err)
					failed++
					continue
				}
				slog.Info("config ok", "file", path, "sensors", len(cfg.Sensors), "adapter", cfg.Adapter)
				if show {
					if err := cfg.Marshal(cmd.OutOrStdout()); err != nil {
						return fmt.Errorf("could not print %s: %w", path, err)
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d config files are invalid", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().Bool("print", false, "print the effective config with defaults applied")
	return cmd
}
