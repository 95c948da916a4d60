package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"goelastix/internal/logging"
	"goelastix/pkg/config"
	"goelastix/pkg/process"
)

var version = "dev"

// app carries the state shared by all subcommands of one invocation
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath      string
	logLevel        string
	verbose         bool
	strict          bool
	elastixPath     string
	transformixPath string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "goelastix",
		Short: "Run elastix registrations and transformix transforms",
		Long: `goelastix runs image registrations with elastix, applies the resulting
transforms with transformix and inspects the files both tools write.

The elastix and transformix executables must be installed separately.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", config.DefaultConfigFile, "config file (YAML or TOML)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, disabled")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "show the tools' standard output")
	flags.BoolVar(&a.strict, "strict", false, "reject half-specified image or point-set pairs")
	flags.StringVar(&a.elastixPath, "elastix", "", "elastix executable")
	flags.StringVar(&a.transformixPath, "transformix", "", "transformix executable")

	root.AddCommand(
		a.registerCmd(),
		a.transformCmd(),
		a.logCmd(),
		a.logsCmd(),
		a.paramEditCmd(),
		a.viewCmd(),
		a.slicesCmd(),
		a.configCmd(),
		a.versionCmd(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the logger
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", a.configPath, err)
	}

	f := cmd.Flags()
	if f.Changed("verbose") {
		cfg.Run.Verbose = a.verbose
	}
	if f.Changed("strict") {
		cfg.Run.Strict = a.strict
	}
	if a.elastixPath != "" {
		cfg.Tools.ElastixPath = a.elastixPath
	}
	if a.transformixPath != "" {
		cfg.Tools.TransformixPath = a.transformixPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	level, ok := logging.ParseLevel(cfg.Log.Level)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}

	a.cfg = cfg
	a.logger = logging.New(a.errOut, level, cfg.Log.Console)
	return nil
}

func (a *app) runner() *process.Runner {
	r := process.NewRunner(a.logger)
	r.Stdout = a.out
	r.Stderr = a.errOut
	r.KillGrace = time.Duration(a.cfg.Run.KillGrace)
	return r
}
