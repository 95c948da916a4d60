package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"goelastix/internal/models"
	"goelastix/pkg/transformix"
)

func (a *app) transformCmd() *cobra.Command {
	var (
		parameterFile string
		outputDir     string
	)

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Apply a registration result with transformix",
		Long: `Apply a TransformParameters file written by elastix.

Examples:
  goelastix transform image moving.mhd --tp result/TransformParameters.1.txt --out warped
  goelastix transform jacobian --tp result/TransformParameters.1.txt --out jac`,
	}
	cmd.PersistentFlags().StringVar(&parameterFile, "tp", "", "transform parameter file")
	cmd.PersistentFlags().StringVarP(&outputDir, "out", "o", ".", "existing output directory")
	_ = cmd.MarkPersistentFlagRequired("tp")

	ops := []struct {
		op    models.Operation
		short string
	}{
		{models.OpImage, "Resample an image"},
		{models.OpPoints, "Transform a point set"},
		{models.OpDeformationField, "Compute the deformation field"},
		{models.OpJacobianDeterminant, "Compute the spatial Jacobian determinant"},
		{models.OpJacobianMatrix, "Compute the full spatial Jacobian matrix"},
	}

	for _, o := range ops {
		op := o.op
		sub := &cobra.Command{
			Use:   op.String(),
			Short: o.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				req := &models.TransformRequest{
					ParameterFile: parameterFile,
					Operation:     op,
					OutputDir:     outputDir,
				}
				if len(args) > 0 {
					req.Input = args[0]
				}

				client := transformix.New(a.cfg.Tools.TransformixPath, parameterFile, a.runner(), a.logger)
				client.Watch = a.cfg.Run.WatchOutput

				res, err := client.Run(cmd.Context(), req, a.cfg.Run.Verbose)
				if err != nil {
					return err
				}

				fmt.Fprintln(a.out, res.OutputPath)
				return nil
			},
		}
		if op.NeedsInput() {
			sub.Use += " <input>"
			sub.Args = cobra.ExactArgs(1)
		}
		cmd.AddCommand(sub)
	}

	return cmd
}
