package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fangqx/DAPPER/xp"
)

func main() {
	var (
		cfgPath string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "dapper",
		Short: "Run data assimilation benchmark experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cfg, err := xp.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			avrg, err := xp.Run(cfg, log)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(avrg))
			for name := range avrg {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%-10s %s\n", name, avrg[name])
			}
			return nil
		},
	}
	root.Flags().StringVarP(&cfgPath, "config", "c", "experiment.yaml", "experiment config file")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
