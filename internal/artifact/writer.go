package artifact

import (
	"os"
	"path/filepath"
	"strings"
)

// WriteToFile writes the artifact to the specified path, creating parent directories if needed.
func (a ConfigArtifact) WriteToFile(path string) error {
	jsonBytes, err := a.ToJSON()
	if err != nil {
		return err
	}
	return writeFile(path, jsonBytes)
}

// WriteConfig writes the nested normalized configuration to path.
// A .json extension produces JSON; anything else produces YAML.
func (a ConfigArtifact) WriteConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = a.ConfigJSON()
	} else {
		data, err = a.ConfigYAML()
	}
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
