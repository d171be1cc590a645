package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mastercactapus/cncdrill/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	deviceName string
	logLevel   string

	settings *config.Settings
	log      = logrus.StandardLogger()
)

var rootCmd = &cobra.Command{
	Use:   "drillctl",
	Short: "Control a two-axis stepper drilling rig",
	Long: `drillctl drives a two-axis drilling rig over serial, a serial-port-json-server
bridge, or the built-in emulator.

Run "drillctl serve" for the HTTP API, or use the one-shot commands to home the
rig and drill a drawing from the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if deviceName != "" {
			settings.Device.Name = deviceName
		}
		if cmd.Flags().Changed("log-level") {
			settings.Logging.Level = logLevel
		}
		if err := settings.Validate(); err != nil {
			return errors.Wrap(err, "invalid settings")
		}

		lvl, _ := logrus.ParseLevel(settings.Logging.Level)
		log.SetLevel(lvl)
		if settings.Logging.File != "" {
			f, err := os.OpenFile(settings.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return errors.Wrap(err, "open log file")
			}
			log.SetOutput(io.MultiWriter(os.Stderr, f))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "drillctl.yaml", "Settings file.")
	rootCmd.PersistentFlags().StringVarP(&deviceName, "device", "d", "", "Device to open (see 'drillctl devices').")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error.")

	rootCmd.AddCommand(serveCmd, devicesCmd, homeCmd, drillCmd, optimizeCmd, exportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("drillctl")
		os.Exit(1)
	}
}
