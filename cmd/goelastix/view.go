package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"goelastix/pkg/imageio"
	"goelastix/pkg/visualization"
)

func (a *app) loadSlicer(path string, index int) (*visualization.Slicer, error) {
	vol, err := imageio.LoadVolume(path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().
		Str("file", path).
		Int("width", vol.Width).
		Int("height", vol.Height).
		Int("depth", vol.Depth).
		Msg("Volume loaded")
	return visualization.NewSlicer(vol, index)
}

func (a *app) viewCmd() *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "view <image>",
		Short: "Browse the slices of a result image in the terminal",
		Long: `Show a volume slice by slice. Use the arrow keys, j/k or the mouse wheel
to move through slices and q to quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slicer, err := a.loadSlicer(args[0], index)
			if err != nil {
				return err
			}
			return visualization.Run(slicer, filepath.Base(args[0]))
		},
	}

	cmd.Flags().IntVar(&index, "slice", 0, "initial slice")
	return cmd
}

func (a *app) slicesCmd() *cobra.Command {
	var (
		axes      []string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "slices <image>",
		Short: "Export the slices of a volume as JPEG files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slicer, err := a.loadSlicer(args[0], 0)
			if err != nil {
				return err
			}

			for _, axis := range axes {
				dir := filepath.Join(outputDir, axis)
				n, err := slicer.SaveSliceSequence(axis, dir)
				if err != nil {
					return fmt.Errorf("saving %s-axis slices: %w", axis, err)
				}
				fmt.Fprintf(a.out, "Saved %d %s-axis slices to %s\n", n, axis, dir)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&axes, "axis", []string{"x", "y", "z"}, "axes to export")
	cmd.Flags().StringVarP(&outputDir, "out", "o", "slices", "output directory")
	return cmd
}
