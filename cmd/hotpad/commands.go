package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/HotRandomPad/internal/config"
	"github.com/himanishpuri/HotRandomPad/internal/engine"
	"github.com/himanishpuri/HotRandomPad/internal/keys"
	"github.com/himanishpuri/HotRandomPad/pkg/hotpad"
	"github.com/himanishpuri/HotRandomPad/pkg/utils"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		script  string
		preload bool
		watch   bool
		linger  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Listen for key events and play bindings",
		Long: `Listen for key events and play bindings until interrupted.

Key events are read one per line from --script or standard input:
  down ctrl_l
  tap 1
  up ctrl_l
  wait 500ms

The default audio backend is null, which plays silently. For audible
output build with -tags portaudio and set --backend portaudio.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printBanner()

			svc, err := a.createService()
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer closeService(svc)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if preload {
				fmt.Println("🔧 Decoding sounds...")
				if err := svc.Preload(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
				}
			}
			if presetPath := a.cfg.Preset.Path; presetPath != "" && (watch || a.cfg.Preset.Watch) {
				if err := svc.WatchPreset(presetPath); err != nil {
					return fmt.Errorf("failed to watch preset: %w", err)
				}
			}

			if a.cfgManager.File() != "" {
				prevDevice := a.cfg.Audio.Device
				a.cfgManager.OnConfigChange(func(cfg *config.Config) {
					applyLogging(cfg)
					if cfg.Audio.Device != prevDevice {
						prevDevice = cfg.Audio.Device
						if err := svc.SetDevice(cfg.Audio.Device); err != nil {
							fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
						}
					}
				})
				a.cfgManager.Watch()
			}

			var in io.Reader = os.Stdin
			if script != "" {
				f, err := os.Open(script)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			bindings := svc.ListBindings()
			fmt.Printf("🎹 %d binding(s) armed on %q. Press Ctrl+C to quit.\n", len(bindings), displayDevice(svc.Device()))

			hook := engine.NewLineHook(in, keys.Normalizer{FoldSides: a.cfg.Keys.FoldSides})
			if err := svc.Listen(ctx, hook); err != nil {
				return err
			}
			svc.Wait()
			if ctx.Err() == nil && linger > 0 {
				// Input ended; let the last sounds ring out.
				select {
				case <-time.After(linger):
				case <-ctx.Done():
				}
			}
			if n := svc.StopAll(); n > 0 {
				fmt.Printf("⏹  Stopped %d sound(s)\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "Read key events from this file instead of stdin")
	cmd.Flags().BoolVar(&preload, "preload", false, "Decode every bound file before listening")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload preset.path when it changes")
	cmd.Flags().DurationVar(&linger, "linger", 3*time.Second, "How long to keep playing after the input ends")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var (
		label     string
		mode      string
		volume    float64
		noOverlap bool
		device    string
	)
	cmd := &cobra.Command{
		Use:   "add <keys> <file>...",
		Short: "Bind a key combination to one or more audio files",
		Example: `  hotpad add ctrl_l+1 ~/sfx/airhorn.wav ~/sfx/rimshot.mp3 --mode shuffle
  hotpad add f5 ./laugh.ogg --label "Laugh" --volume 0.6 --no-overlap`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			chord, err := keys.Normalizer{FoldSides: a.cfg.Keys.FoldSides}.ParseCombo(args[0])
			if err != nil {
				return fmt.Errorf("invalid key combination %q: %w", args[0], err)
			}

			files := make([]string, 0, len(args)-1)
			for _, f := range args[1:] {
				abs, err := utils.ResolvePath(f)
				if err != nil {
					return err
				}
				if !utils.FileExists(abs) {
					fmt.Fprintf(os.Stderr, "⚠️  %s does not exist (yet)\n", abs)
				}
				files = append(files, abs)
			}

			b := hotpad.NewBinding(label, chord.Strings(), files...)
			b.Mode = mode
			b.Volume = volume
			b.AllowOverlap = !noOverlap
			b.Device = device

			svc, err := a.createService()
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer closeService(svc)

			if err := svc.AddBinding(b); err != nil {
				return fmt.Errorf("failed to add binding: %w", err)
			}

			fmt.Println("✅ Binding saved")
			want := chord.String()
			for _, saved := range svc.ListBindings() {
				if strings.Join(saved.Keys, "+") == want {
					printBinding(0, saved)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Display name (defaults to the key combination)")
	cmd.Flags().StringVar(&mode, "mode", "random", "Selection mode: random, round_robin, shuffle")
	cmd.Flags().Float64Var(&volume, "volume", 1.0, "Volume, 0.0 to 1.0")
	cmd.Flags().BoolVar(&noOverlap, "no-overlap", false, "Ignore presses while the previous sound still plays")
	cmd.Flags().StringVar(&device, "output", "", "Play this binding on a specific output device")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bindings",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := a.createService()
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer closeService(svc)

			bindings := svc.ListBindings()
			if len(bindings) == 0 {
				fmt.Println("\n📭 No bindings yet. Add one with: hotpad add <keys> <file>...")
				return nil
			}

			fmt.Printf("\n📚 Found %d binding(s):\n\n", len(bindings))
			for i, b := range bindings {
				printBinding(i+1, b)
			}
			return nil
		},
	}
}

func printBinding(n int, b hotpad.Binding) {
	if n > 0 {
		fmt.Printf("%d. ", n)
	}
	fmt.Printf("%q [%s]\n", b.Hotkey, b.KeyLabel)
	fmt.Printf("   Mode: %s | Volume: %.2f | Overlap: %t", b.Mode, b.Volume, b.AllowOverlap)
	if b.Device != "" {
		fmt.Printf(" | Output: %s", b.Device)
	}
	fmt.Println()
	switch b.Mode {
	case "round_robin":
		fmt.Printf("   Next: #%d\n", b.RRIndex+1)
	case "shuffle":
		fmt.Printf("   Left in shuffle: %d\n", b.Queued)
	}
	for _, f := range b.Files {
		fmt.Printf("   - %s\n", f)
	}
	fmt.Println()
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <label>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a binding",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, err := a.createService()
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer closeService(svc)

			if err := svc.RemoveBinding(args[0]); err != nil {
				return fmt.Errorf("failed to remove binding: %w", err)
			}
			fmt.Printf("✅ Removed %q\n", args[0])
			return nil
		},
	}
}

func newTestCmd(a *app) *cobra.Command {
	var (
		times int
		hold  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "test <label>",
		Short: "Play a binding as if its keys were pressed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.createService()
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer closeService(svc)

			for i := 0; i < times; i++ {
				if err := svc.Trigger(args[0]); err != nil {
					if errors.Is(err, hotpad.ErrUnknownBinding) {
						return fmt.Errorf("no binding labelled %q (see: hotpad list)", args[0])
					}
					return err
				}
			}
			svc.Wait()
			fmt.Printf("🎵 Triggered %q %d time(s)\n", args[0], times)

			select {
			case <-time.After(hold):
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&times, "times", "n", 1, "Number of activations")
	cmd.Flags().DurationVar(&hold, "hold", 2*time.Second, "Keep the device open this long so the sound can finish")
	return cmd
}

func newDevicesCmd(a *app) *cobra.Command {
	var selectName string
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List output devices or select one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.createService()
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer closeService(svc)

			if cmd.Flags().Changed("select") {
				if err := svc.SetDevice(selectName); err != nil {
					return fmt.Errorf("failed to select device: %w", err)
				}
				fmt.Printf("✅ Output device: %s\n", displayDevice(selectName))
				return nil
			}

			devices, err := svc.Devices()
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}
			current := svc.Device()
			fmt.Printf("\n🔊 %d output device(s):\n\n", len(devices))
			for _, d := range devices {
				marker := "  "
				if d == current {
					marker = "* "
				}
				fmt.Printf("%s%s\n", marker, d)
			}
			if current == "" {
				fmt.Println("\n* system default")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&selectName, "select", "", "Select and remember this output device (\"\" for the default)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <preset.json>",
		Short: "Replace all bindings with those of a preset file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, err := a.createService()
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer closeService(svc)

			warnings, err := svc.ImportPreset(args[0])
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "⚠️  %v\n", w)
			}
			if err != nil {
				return fmt.Errorf("failed to import preset: %w", err)
			}
			fmt.Printf("✅ Imported %d binding(s)\n", len(svc.ListBindings()))
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <preset.json>",
		Short: "Write all bindings to a preset file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, err := a.createService()
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer closeService(svc)

			if err := svc.ExportPreset(args[0]); err != nil {
				return fmt.Errorf("failed to export preset: %w", err)
			}
			fmt.Printf("✅ Exported %d binding(s) to %s\n", len(svc.ListBindings()), args[0])
			return nil
		},
	}
}

func displayDevice(name string) string {
	if name == "" {
		return "system default"
	}
	return name
}
