package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/impala3/CARin2050/pkg/config"
	"github.com/impala3/CARin2050/pkg/logging"
	"github.com/impala3/CARin2050/pkg/pipeline"
	"github.com/impala3/CARin2050/pkg/report"
)

// options are the flags shared by every command.
type options struct {
	configPath string
	saveDir    string
	force      bool
	verbose    bool
	workers    int
	trees      int
	noPlots    bool
	cvFolds    int

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "cropshap [path]",
		Short: "Train crop abundance forests and explain them with SHAP values",
		Long: `cropshap trains a random forest regressor on every crop abundance table
it is given, evaluates it on a held-out split, ranks the features and writes
SHAP values and plots next to the cached model.

A path may be a single .txt table or a directory of them.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if o.logger != nil {
				_ = o.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return o.run(cmd, args[0])
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", config.DefaultPath, "YAML configuration file")
	f.StringVar(&o.saveDir, "save-dir", "", "directory for models, SHAP values and plots")
	f.BoolVar(&o.force, "force", false, "retrain and recompute even when cached artifacts exist")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	f.IntVar(&o.workers, "workers", 0, "goroutines used for training and SHAP (0 = all CPUs)")
	f.IntVar(&o.trees, "trees", 0, "number of trees, overrides the configuration")
	f.BoolVar(&o.noPlots, "no-plots", false, "skip PNG plots")
	f.IntVar(&o.cvFolds, "cv", -1, "k-fold cross-validation folds (0 disables)")

	root.AddCommand(newRunCmd(o), newWatchCmd(o), newConfigCmd(o))
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.saveDir != "" {
		cfg.SaveDir = o.saveDir
	}
	if cmd.Flags().Changed("workers") {
		cfg.Model.Workers = o.workers
	}
	if o.trees > 0 {
		cfg.Model.NEstimators = o.trees
	}
	if o.noPlots {
		cfg.Plots = false
	}
	if o.cvFolds >= 0 {
		cfg.CVFolds = o.cvFolds
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	o.logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, o.verbose)
	return err
}

func (o *options) processor(cmd *cobra.Command) (*pipeline.Processor, error) {
	return pipeline.New(o.cfg,
		pipeline.WithLogger(o.logger),
		pipeline.WithPrinter(report.New(cmd.OutOrStdout())),
		pipeline.WithForce(o.force),
	)
}

func (o *options) run(cmd *cobra.Command, path string) error {
	p, err := o.processor(cmd)
	if err != nil {
		return err
	}
	o.logger.Info("run started", zap.String("path", path), zap.String("run_id", p.RunID()))
	_, err = p.Run(cmd.Context(), path)
	return err
}
