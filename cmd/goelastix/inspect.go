package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"goelastix/pkg/logfile"
	"goelastix/pkg/paramfile"
)

func (a *app) logCmd() *cobra.Command {
	var (
		asCSV   bool
		columns []string
	)

	cmd := &cobra.Command{
		Use:   "log <IterationInfo file>",
		Short: "Summarize an elastix iteration log",
		Long: `Parse an IterationInfo.<stage>.R<level>.txt file.

By default each column is summarized. With --csv the whole table is written
as CSV instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := logfile.Parse(args[0])
			if err != nil {
				return err
			}
			if asCSV {
				return table.WriteCSV(a.out)
			}

			if len(columns) == 0 {
				columns = table.Columns()
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "column\tcount\tfirst\tlast\tmin\tmax\tmean")
			for _, name := range columns {
				s, err := table.Summarize(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%g\t%g\t%g\t%g\t%g\n",
					s.Column, s.Count, s.First, s.Last, s.Min, s.Max, s.Mean)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "write the table as CSV")
	cmd.Flags().StringSliceVar(&columns, "column", nil, "columns to summarize (default all)")
	return cmd
}

func (a *app) logsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <output dir>",
		Short: "List the iteration logs in an elastix output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := logfile.Discover(args[0])
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				a.logger.Warn().Str("dir", args[0]).Msg("No iteration logs found")
			}
			for _, l := range logs {
				fmt.Fprintln(a.out, l)
			}
			return nil
		},
	}
}

func (a *app) paramEditCmd() *cobra.Command {
	var (
		editor paramfile.Editor
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "paramedit <TransformParameters file>",
		Short: "Prepare a transform parameter file for resampling label images",
		Long: `Rewrite a transform parameter file so transformix produces float output
with nearest-neighbour final interpolation, as needed for binary masks.

Examples:
  goelastix paramedit result/TransformParameters.1.txt --out labels.txt
  goelastix paramedit result/TransformParameters.1.txt --masked --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			editor.Source = args[0]

			if dryRun {
				before, after, err := editor.Render()
				if err != nil {
					return err
				}
				diff := paramfile.Diff(before, after)
				if !paramfile.Changed(diff) {
					a.logger.Info().Str("file", editor.Source).Msg("Parameter file already prepared")
				}
				fmt.Fprint(a.out, diff)
				return nil
			}

			if editor.Output == "" {
				return errors.New("--out is required unless --dry-run is set")
			}
			m, err := editor.Apply()
			if err != nil {
				return err
			}
			a.logger.Info().
				Str("source", editor.Source).
				Str("output", editor.Output).
				Int("parameters", m.Len()).
				Msg("Parameter file written")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&editor.Output, "out", "o", "", "edited parameter file to write")
	f.StringVar(&editor.InitialTransform, "initial-transform", "", "replace the initial transform reference")
	f.BoolVar(&editor.MaskedInitialTransform, "masked", false, "point the initial transform at its _masked sibling")
	f.BoolVar(&dryRun, "dry-run", false, "print a diff instead of writing")
	return cmd
}
