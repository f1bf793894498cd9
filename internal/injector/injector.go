// Package injector hands a validated configuration to the downstream workflow.
package injector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gridcfg/internal/artifact"
)

// InjectFile writes the nested normalized config to path.
// Relative paths resolve against the working directory. The format follows the extension.
func InjectFile(art artifact.ConfigArtifact, path string) (string, error) {
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		path = filepath.Join(cwd, path)
	}

	if err := art.WriteConfig(path); err != nil {
		return "", fmt.Errorf("failed to inject config file: %w", err)
	}
	return path, nil
}

// InjectEnv returns a copy of environ with varName set to the nested config as JSON.
// Existing assignments of varName are replaced.
func InjectEnv(art artifact.ConfigArtifact, environ []string, varName string) ([]string, error) {
	if varName == "" || strings.ContainsAny(varName, "= ") {
		return nil, fmt.Errorf("invalid environment variable name '%s'", varName)
	}

	jsonBytes, err := art.ConfigJSON()
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(environ)+1)
	prefix := varName + "="
	for _, env := range environ {
		if !strings.HasPrefix(env, prefix) {
			result = append(result, env)
		}
	}

	result = append(result, varName+"="+string(jsonBytes))

	return result, nil
}

// VersionEnv returns environ with GRIDCFG_CONFIG_VERSION set, so the workflow can
// record which configuration it ran with.
func VersionEnv(art artifact.ConfigArtifact, environ []string) []string {
	const name = "GRIDCFG_CONFIG_VERSION"
	result := make([]string, 0, len(environ)+1)
	for _, env := range environ {
		if !strings.HasPrefix(env, name+"=") {
			result = append(result, env)
		}
	}
	return append(result, name+"="+art.ConfigVersion)
}
