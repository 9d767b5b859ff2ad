package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/gotalk-coach/internal/audio"
)

func newUploadCmd(opts *globalOptions) *cobra.Command {
	var deliver deliverOptions
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Analyze a pre-recorded audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				art, err := a.coord.ProduceArtifact(ctx, &audio.File{Name: filepath.Base(args[0]), Data: data})
				if err != nil {
					return err
				}
				return a.deliver(ctx, cmd.OutOrStdout(), art, deliver)
			})
		},
	}
	deliver.bind(cmd)
	return cmd
}
