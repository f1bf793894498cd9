package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gridcfg/internal/injector"
	"gridcfg/internal/launcher"
)

func (a *app) newRunCmd() *cobra.Command {
	var (
		flags      inputFlags
		configPath string
		injectFile string
		injectEnv  string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Validate the config, then replace this process with the workflow command",
		Long: `Validate the config file and, only if it is valid, execute the workflow
command with the normalized config injected. The command never runs when
validation fails.

Example:
  gridcfg run --inject-file resources/config.validated.yaml -- snakemake -j4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := launcher.NewCommand(args)
			if err != nil {
				return fail(exitInvalid, "%w", err)
			}

			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			o, err := a.prepareOverrides(&flags)
			if err != nil {
				return err
			}

			rep := a.validateFile(s, configPath, o)
			if err := a.afterValidation(&rep, &flags); err != nil {
				return err
			}
			if !rep.valid() {
				a.printTextReport(rep)
				return checkExit([]fileReport{rep})
			}
			if rep.Drift != nil {
				a.printTextReport(rep)
			}

			environ := a.environ
			if injectFile != "" {
				written, err := injector.InjectFile(rep.Artifact, injectFile)
				if err != nil {
					return fail(exitInvalid, "cannot write config: %s: %w", injectFile, err)
				}
				a.logger.Info("config injected", "file", written)
			}
			if injectEnv != "" {
				environ, err = injector.InjectEnv(rep.Artifact, environ, injectEnv)
				if err != nil {
					return fail(exitInvalid, "cannot inject config to env: %w", err)
				}
			}
			environ = injector.VersionEnv(rep.Artifact, environ)

			if dryRun {
				fmt.Fprintf(a.stdout, "configVersion: %s\n", rep.Artifact.ConfigVersion)
				fmt.Fprintf(a.stdout, "would run: %s\n", strings.Join(append([]string{target.Target}, target.Args...), " "))
				return nil
			}

			a.logger.Debug("launching", "command", target.Target, "configVersion", rep.Artifact.ConfigVersion)
			err = launcher.Exec(target, environ)
			// Exec only returns on failure
			switch code := launcher.ExitCode(err); code {
			case launcher.ExitNotFound:
				return fail(code, "command not found: %s", target.Target)
			case launcher.ExitPermissionDenied:
				return fail(code, "permission denied: %s", target.Target)
			default:
				return fail(code, "%w", err)
			}
		},
	}

	cmd.Flags().SetInterspersed(false)
	flags.register(cmd)
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigFile, "config file to validate")
	cmd.Flags().StringVar(&injectFile, "inject-file", "", "write the normalized config to this file (.yaml/.json)")
	cmd.Flags().StringVar(&injectEnv, "inject-env", "", "pass the normalized config as JSON in this environment variable")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and inject, but print the command instead of running it")
	return cmd
}
