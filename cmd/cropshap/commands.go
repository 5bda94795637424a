package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/impala3/CARin2050/pkg/pipeline"
)

func newRunCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <path>",
		Short: "Process a table or every .txt table in a directory",
		Example: `  cropshap run data/north.txt
  cropshap run data/ --trees 200 --save-dir out`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
}

func newWatchCmd(o *options) *cobra.Command {
	debounce := pipeline.DefaultDebounce
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process tables as they are written into a directory",
		Long: `watch processes every .txt table that is created or rewritten in dir
until interrupted. A changed table is always retrained.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.processor(cmd)
			if err != nil {
				return err
			}
			return p.Watch(cmd.Context(), args[0], debounce, nil)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", pipeline.DefaultDebounce, "quiet period before a changed file is processed")
	return cmd
}

func newConfigCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(o.cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
