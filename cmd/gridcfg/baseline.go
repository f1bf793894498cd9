package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"gridcfg/internal/baseline"
	"gridcfg/internal/rules"
)

func (a *app) newBaselineCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Inspect and remove stored config baselines",
		Long: `Baselines are normalized configs saved with check --baseline NAME and
compared with check --detect-drift NAME. Names are scoped to the config
section (--section) and live in $GRIDCFG_BASELINE_DIR/<section>
(default ~/.gridcfg/baselines).`,
	}
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print as JSON")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored baselines of every section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries, err := a.baselineStore().List()
			if err != nil {
				return fail(exitInvalid, "cannot list baselines: %w", err)
			}
			if jsonOut {
				return a.printJSON(summaries, "baselines")
			}
			if len(summaries) == 0 {
				fmt.Fprintln(a.stdout, "No baselines found")
				return nil
			}
			for _, b := range summaries {
				fmt.Fprintf(a.stdout, "%s  %s  %s  %s  %s\n", b.Name, b.Section, shortHash(b.ConfigHash), b.Source, b.Timestamp.Format(time.RFC3339))
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a stored baseline of the section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.baselineStore().Load(a.section(), args[0])
			if err != nil {
				return baselineError(args[0], "cannot load baseline", err)
			}
			if jsonOut {
				return a.printJSON(b, "baseline")
			}
			fmt.Fprintf(a.stdout, "Name:        %s\n", b.Name)
			fmt.Fprintf(a.stdout, "Section:     %s\n", b.Section)
			fmt.Fprintf(a.stdout, "ConfigHash:  %s\n", b.ConfigHash)
			fmt.Fprintf(a.stdout, "Source:      %s\n", b.Source)
			fmt.Fprintf(a.stdout, "Timestamp:   %s\n", b.Timestamp.Format(time.RFC3339))
			fmt.Fprintln(a.stdout, "Config Values:")
			keys := make([]string, 0, len(b.ConfigValues))
			for k := range b.ConfigValues {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(a.stdout, "  %s: %s\n", k, rules.FormatValue(b.ConfigValues[k]))
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored baseline of the section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.baselineStore().Delete(a.section(), args[0]); err != nil {
				return baselineError(args[0], "cannot delete baseline", err)
			}
			fmt.Fprintf(a.stdout, "Deleted baseline: %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func baselineError(name, action string, err error) error {
	if errors.Is(err, baseline.ErrBaselineNotFound) {
		return fail(exitNoBaseline, "baseline not found: %s", name)
	}
	return fail(exitInvalid, "%s: %w", action, err)
}

func shortHash(h string) string {
	if len(h) <= 20 {
		return h
	}
	return h[:20] + "..."
}

func (a *app) printJSON(v any, what string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fail(exitInvalid, "cannot serialize %s: %w", what, err)
	}
	fmt.Fprintln(a.stdout, string(data))
	return nil
}
