package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/gotalk-coach/internal/audio"
	"github.com/Alijeyrad/gotalk-coach/internal/pipeline"
)

type deliverOptions struct {
	out       string
	noAnalyze bool
}

func (o *deliverOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "also write the artifact to this file")
	cmd.Flags().BoolVar(&o.noAnalyze, "no-analyze", false, "do not submit the artifact for analysis")
}

func newRecordCmd(opts *globalOptions) *cobra.Command {
	var (
		deliver  deliverOptions
		noHotkey bool
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone until Enter, Ctrl-C, the hotkey or the duration cap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				art, err := a.record(ctx, &audio.PulseDevice{AppName: appName, Log: a.log}, cmd.InOrStdin(), cmd.OutOrStdout(), !noHotkey)
				if errors.Is(err, audio.ErrDeviceUnavailable) {
					return fmt.Errorf("%w\nno microphone available; record elsewhere and use \"gotalk-coach upload <file>\"", err)
				}
				if err != nil {
					return err
				}
				return a.deliver(ctx, cmd.OutOrStdout(), art, deliver)
			})
		},
	}
	deliver.bind(cmd)
	cmd.Flags().BoolVar(&noHotkey, "no-hotkey", false, "do not grab the global hotkey")
	return cmd
}

// record captures from dev until one of the stop triggers fires or the
// controller stops on its own at the cap.
func (a *app) record(ctx context.Context, dev audio.Device, stdin io.Reader, stdout io.Writer, useHotkey bool) (pipeline.Artifact, error) {
	outcomes, err := a.coord.StartCapture(ctx, dev)
	if err != nil {
		return pipeline.Artifact{}, err
	}

	sigCtx, stopSig := signal.NotifyContext(ctx, os.Interrupt)
	defer stopSig()
	interrupt := sigCtx.Done()

	enter := make(chan struct{})
	go func() {
		if _, err := bufio.NewReader(stdin).ReadString('\n'); err == nil {
			close(enter)
		}
	}()

	var presses <-chan struct{}
	if useHotkey {
		var stopHotkey func()
		presses, stopHotkey = a.listenHotkey()
		defer stopHotkey()
	}

	fmt.Fprintf(stdout, "Recording (at most %ds). Press Enter", a.cfg.MaxDuration)
	if presses != nil {
		fmt.Fprintf(stdout, ", %s", a.cfg.Hotkey)
	}
	fmt.Fprintln(stdout, " or Ctrl-C to stop.")

	for {
		select {
		case o, ok := <-outcomes:
			if !ok {
				return pipeline.Artifact{}, errors.New("capture ended without an artifact")
			}
			a.log.Infow("recording finished", "reason", o.Reason)
			return o.Artifact, nil
		case <-enter:
			enter = nil
			a.stopCapture("enter")
		case <-presses:
			presses = nil
			a.stopCapture("hotkey")
		case <-interrupt:
			interrupt = nil
			a.stopCapture("interrupt")
		}
	}
}

func (a *app) stopCapture(trigger string) {
	a.log.Debugw("stop requested", "trigger", trigger)
	if err := a.coord.StopCapture(); err != nil {
		// Already stopped, e.g. by the duration cap.
		a.log.Debugw("stop ignored", "trigger", trigger, "error", err)
	}
}

// deliver writes and/or analyzes a finished artifact.
func (a *app) deliver(ctx context.Context, w io.Writer, art pipeline.Artifact, o deliverOptions) error {
	printArtifact(w, art)
	if o.out != "" {
		if err := os.WriteFile(o.out, art.Bytes, 0644); err != nil {
			return fmt.Errorf("writing artifact: %w", err)
		}
		fmt.Fprintf(w, "Saved to %s\n", o.out)
	}
	if o.noAnalyze {
		return nil
	}
	rep, err := a.analysis.Analyze(ctx, art)
	if err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}
	printReport(w, rep)
	return nil
}
