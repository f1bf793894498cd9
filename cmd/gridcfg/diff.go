package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gridcfg/internal/document"
	"gridcfg/internal/drift"
)

func (a *app) newDiffCmd() *cobra.Command {
	var (
		sep      string
		jsonOut  bool
		csvDir   string
		exitCode bool
	)

	cmd := &cobra.Command{
		Use:   "diff <config A> <config B>",
		Short: "Compare two config documents key by key",
		Long: `Flatten two configuration documents into separator-joined keys and report
the keys present in only one of them and the values that differ. Use
--sep + to match the column names of the workflow's compare_config script.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sep == "" {
				return fail(exitInvalid, "--sep must not be empty")
			}
			first, err := document.Load(args[0])
			if err != nil {
				return fail(exitLoadError, "%s: %w", args[0], err)
			}
			second, err := document.Load(args[1])
			if err != nil {
				return fail(exitLoadError, "%s: %w", args[1], err)
			}

			c := drift.Compare(first, second, sep)
			a.logger.Debug("compared", "onlyInFirst", len(c.OnlyInFirst), "onlyInSecond", len(c.OnlyInSecond), "changed", len(c.Changed))

			if jsonOut {
				out, err := drift.FormatComparisonJSON(c)
				if err != nil {
					return fail(exitInvalid, "cannot serialize comparison: %w", err)
				}
				fmt.Fprintln(a.stdout, out)
			} else {
				fmt.Fprint(a.stdout, drift.FormatComparison(c))
			}

			if csvDir != "" {
				written, err := drift.WriteCSV(c, csvDir)
				if err != nil {
					return fail(exitInvalid, "cannot write csv: %w", err)
				}
				for _, path := range written {
					fmt.Fprintf(a.stderr, "wrote %s\n", path)
				}
			}

			if exitCode && c.HasDifferences() {
				return &exitError{code: exitInvalid}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sep, "sep", drift.DefaultSeparator, "separator joining nested key names")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the comparison as JSON")
	cmd.Flags().StringVar(&csvDir, "csv-dir", "", "also write col_diff.csv and config_diff.csv to this directory")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit with status 1 when the documents differ")
	return cmd
}
