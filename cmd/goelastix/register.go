package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"goelastix/internal/models"
	"goelastix/pkg/elastix"
)

func (a *app) registerCmd() *cobra.Command {
	var (
		req    models.RegistrationRequest
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a moving image or point set onto a fixed one",
		Long: `Run elastix with one or more parameter files.

Images and point sets are given in pairs. A pair with only one side set is
left out with a warning, or rejected with --strict.

Examples:
  goelastix register -f fixed.mhd -m moving.mhd -p rigid.txt -p bspline.txt --out result
  goelastix register --fixed-points f.txt --moving-points m.txt -p affine.txt --out result`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := elastix.New(a.cfg.Tools.ElastixPath, a.runner(), a.logger)
			client.Strict = a.cfg.Run.Strict
			client.Watch = a.cfg.Run.WatchOutput

			if dryRun {
				argv, err := client.Command(&req)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, strings.Join(argv, " "))
				return nil
			}

			res, err := client.Register(cmd.Context(), &req, a.cfg.Run.Verbose)
			if err != nil {
				return err
			}

			for _, tp := range res.TransformParameterFiles {
				fmt.Fprintf(a.out, "Transform parameters: %s\n", tp)
			}
			if res.ResultImage != "" {
				fmt.Fprintf(a.out, "Result image: %s\n", res.ResultImage)
			}
			for _, l := range res.IterationLogs {
				fmt.Fprintf(a.out, "Iteration log: %s\n", l)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.FixedImage, "fixed", "f", "", "fixed image")
	f.StringVarP(&req.MovingImage, "moving", "m", "", "moving image")
	f.StringVar(&req.FixedPoints, "fixed-points", "", "fixed point set")
	f.StringVar(&req.MovingPoints, "moving-points", "", "moving point set")
	f.StringVar(&req.FixedMask, "fixed-mask", "", "fixed image mask")
	f.StringVar(&req.MovingMask, "moving-mask", "", "moving image mask")
	f.StringVar(&req.InitialTransform, "t0", "", "initial transform parameter file")
	f.StringArrayVarP(&req.ParameterFiles, "param", "p", nil, "parameter file, repeat for multiple stages")
	f.StringVarP(&req.OutputDir, "out", "o", "", "existing output directory")
	f.BoolVar(&dryRun, "dry-run", false, "print the elastix command line without running it")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
