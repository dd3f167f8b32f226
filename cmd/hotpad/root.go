package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/HotRandomPad/internal/config"
	"github.com/himanishpuri/HotRandomPad/pkg/hotpad"
	"github.com/himanishpuri/HotRandomPad/pkg/logger"
)

// app carries what every subcommand needs once flags and config are parsed.
type app struct {
	configFile string
	cfgManager *config.Manager
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "hotpad",
		Short:         "Play a random sound from a pool when a hotkey is pressed",
		Long:          "HotRandomPad binds key combinations to pools of audio files and plays one per press,\npicked at random, in round-robin order or from a shuffled queue.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/HotRandomPad/config.yaml)")
	flags.String("db", "", "Path to the SQLite database file")
	flags.String("backend", "", "Audio backend: null or portaudio")
	flags.String("device", "", "Output device name (overrides the saved selection)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newRunCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newRemoveCmd(a),
		newTestCmd(a),
		newDevicesCmd(a),
		newImportCmd(a),
		newExportCmd(a),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	m, err := config.NewManager(a.configFile)
	if err != nil {
		return err
	}

	v := m.Viper()
	pf := cmd.Flags()
	for key, flag := range map[string]string{
		"database.path": "db",
		"audio.backend": "backend",
		"audio.device":  "device",
		"logging.level": "log-level",
	} {
		if f := pf.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind --%s: %w", flag, err)
			}
		}
	}

	if err := m.Load(); err != nil {
		return err
	}
	a.cfgManager = m
	a.cfg = m.Config()

	logger.SetOutput(os.Stderr)
	applyLogging(a.cfg)
	logger.Debugf("Config file: %q, database: %s", m.File(), a.cfg.Database.Path)
	return nil
}

func applyLogging(cfg *config.Config) {
	log := logger.GetLogger()
	log.SetFormat(cfg.Logging.Format)
	if lvl, ok := logger.ParseLevel(cfg.Logging.Level); ok {
		log.SetLevel(lvl)
	}
}

// createService opens the service with the loaded configuration.
func (a *app) createService(extra ...hotpad.Option) (hotpad.Service, error) {
	cfg := a.cfg
	opts := []hotpad.Option{
		hotpad.WithDBPath(cfg.Database.Path),
		hotpad.WithBackend(cfg.Audio.Backend),
		hotpad.WithDevice(cfg.Audio.Device),
		hotpad.WithStream(cfg.Audio.SampleRate, cfg.Audio.BufferFrames),
		hotpad.WithFFmpeg(cfg.Audio.FFmpeg),
		hotpad.WithTempDir(cfg.Audio.TempDir),
		hotpad.WithFoldSides(cfg.Keys.FoldSides),
		hotpad.WithOnWarning(func(err error) {
			fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
		}),
	}
	return hotpad.NewService(append(opts, extra...)...)
}

func closeService(svc hotpad.Service) {
	if err := svc.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close service: %v\n", err)
	}
}
