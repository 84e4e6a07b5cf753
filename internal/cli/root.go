// ABOUTME: Cobra command tree for the multiplay binary
// ABOUTME: Loads layered config, sets up logging and dispatches to the app
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/multiplay/internal/app"
	"github.com/Resonate-Protocol/multiplay/internal/config"
	"github.com/Resonate-Protocol/multiplay/internal/logging"
	"github.com/Resonate-Protocol/multiplay/internal/version"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/output"
	"github.com/spf13/cobra"
)

// state is shared by the commands of one invocation
type state struct {
	opts     config.Options
	closeLog func() error
	out      io.Writer
}

// NewRootCmd builds the command tree. out receives reports; stdout when nil.
func NewRootCmd(out io.Writer) *cobra.Command {
	root, _ := newRoot(out)
	return root
}

func newRoot(out io.Writer) (*cobra.Command, *state) {
	if out == nil {
		out = os.Stdout
	}
	s := &state{opts: config.Defaults(), out: out}

	root := &cobra.Command{
		Use:   "multiplay",
		Short: "Play one audio file on several output devices in sync",
		Long: `Multiplay plays a single audio file on several output devices at once. ` +
			`Each device waits a calibrated delay before it starts so that slow and fast devices ` +
			`are heard together. Run "devices", then "calibrate", then "play".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return s.close()
		},
	}
	root.SetOut(out)

	config.BindFlags(root.PersistentFlags(), &s.opts)

	root.AddCommand(
		s.devicesCmd(),
		s.calibrateCmd(),
		s.playCmd(),
		s.previewCmd(),
		versionCmd(),
	)
	return root, s
}

// close releases the log file; safe to call more than once
func (s *state) close() error {
	if s.closeLog == nil {
		return nil
	}
	closeLog := s.closeLog
	s.closeLog = nil
	return closeLog()
}

// setup loads configuration and initializes logging
func (s *state) setup(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	if err := config.LoadConfig(&s.opts, cmd); err != nil {
		return err
	}
	if err := s.opts.Validate(output.Backends()); err != nil {
		return err
	}

	// Only play draws the TUI
	tui := s.opts.UITUI && cmd.Name() == "play"
	w, closeLog, err := logging.OpenOutput(s.opts.LoggingFile, tui)
	if err != nil {
		return err
	}
	s.closeLog = closeLog

	logging.Initialize(logging.Config{
		Level:   s.opts.LoggingLevel,
		Format:  s.opts.LoggingFormat,
		Modules: s.opts.ModuleLevels(),
		Output:  w,
	})
	return nil
}

// newApp creates the app for one command
func (s *state) newApp() (*app.App, error) {
	a, err := app.New(app.Config{Options: s.opts, Out: s.out})
	if err != nil {
		return nil, err
	}
	logging.GetLogger("main").Info("Starting", "version", version.Version,
		"backend", s.opts.AudioBackend, "run_id", a.RunID())
	return a, nil
}

func (s *state) devicesCmd() *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List output devices and save the device list",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := s.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.Devices(!noSave)
			return err
		},
	}
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Only print devices, do not write the device list")
	return cmd
}

func (s *state) calibrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate",
		Short: "Measure each listed device's latency and write the latency table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := s.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.Calibrate(cmd.Context())
			return err
		},
	}
}

func (s *state) playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play [file]",
		Short: "Play the audio file on every listed device with latency compensation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				s.opts.AudioFile = args[0]
			}

			a, err := s.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.Play(cmd.Context())
			return err
		},
	}
}

func (s *state) previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview [file]",
		Short: "Play the audio file once on the system default output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				s.opts.AudioFile = args[0]
			}

			a, err := s.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Preview(cmd.Context())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	root, s := newRoot(out)
	// PersistentPostRunE is skipped when a command fails
	defer s.close()

	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		if errors.Is(err, app.ErrDevicesFailed) {
			return 2
		}
		return 1
	}
	return 0
}
