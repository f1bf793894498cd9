package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gridcfg/internal/rules"
	"gridcfg/internal/schema"
)

func (a *app) newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect or export the option schema",
	}

	var yamlOut bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the option table for the section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			if yamlOut {
				data, err := s.ToYAML()
				if err != nil {
					return fail(exitInvalid, "cannot serialize schema: %w", err)
				}
				_, err = a.stdout.Write(data)
				return err
			}

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OPTION\tTYPE\tDEFAULT\tDOMAIN")
			for _, opt := range s.Options() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", opt.Path, opt.Type, defaultText(opt), domainText(opt))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if rs := s.Rules(); len(rs) > 0 {
				fmt.Fprintln(a.stdout, "\nRules:")
				for _, r := range rs {
					fmt.Fprintf(a.stdout, "  %s: %s\n", r.Name, r.Rule)
				}
			}
			return nil
		},
	}
	show.Flags().BoolVar(&yamlOut, "yaml", false, "print the schema file instead of a table")

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export the option set as JSON Schema (draft 2020-12)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			data, err := s.JSONSchema()
			if err != nil {
				return fail(exitInvalid, "%w", err)
			}
			if _, err := schema.CompileJSONSchema(data); err != nil {
				return fail(exitInvalid, "%w", err)
			}

			if output == "" || output == "-" {
				fmt.Fprintln(a.stdout, string(data))
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return fail(exitInvalid, "cannot write schema: %w", err)
			}
			if err := os.WriteFile(output, append(data, '\n'), 0644); err != nil {
				return fail(exitInvalid, "cannot write schema: %w", err)
			}
			a.logger.Info("JSON schema written", "file", output)
			return nil
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	list := &cobra.Command{
		Use:   "sections",
		Short: "List the sections with a built-in option table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range schema.BuiltinSections() {
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		},
	}

	cmd.AddCommand(show, export, list)
	return cmd
}

func defaultText(opt schema.OptionSpec) string {
	switch {
	case opt.HasDefault():
		return rules.FormatValue(opt.Default)
	case opt.Required:
		return "(required)"
	}
	return "-"
}

// domainText summarizes bounds, allowed values and file checks for one option
func domainText(opt schema.OptionSpec) string {
	var parts []string
	switch {
	case opt.Min != nil && opt.Max != nil:
		parts = append(parts, fmt.Sprintf("[%s, %s]", schema.FormatNumber(*opt.Min), schema.FormatNumber(*opt.Max)))
	case opt.Min != nil:
		parts = append(parts, ">= "+schema.FormatNumber(*opt.Min))
	case opt.Max != nil:
		parts = append(parts, "<= "+schema.FormatNumber(*opt.Max))
	}
	if allowed := opt.AllowedStrings(); len(allowed) > 0 {
		parts = append(parts, "{"+strings.Join(allowed, ", ")+"}")
	}
	if opt.MustExist {
		parts = append(parts, "must exist")
	}
	if opt.Unit != "" {
		parts = append(parts, opt.Unit)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
