package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const starterHeader = `# Aureum configuration, written with the defaults on first run.
# Edit and restart to apply. Command-line flags override these values.
`

// WriteStarter writes the default settings to <config dir>/config.yaml so
// a first run leaves a file to edit. An existing file is left alone.
// It returns the path and whether it was created.
func WriteStarter() (string, bool, error) {
	path := filepath.Join(ConfigDir(), "config.yaml")
	created, err := writeStarter(path)
	return path, created, err
}

func writeStarter(path string) (bool, error) {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return false, fmt.Errorf("encode defaults: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = f.Write(append([]byte(starterHeader), data...))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return false, err
	}
	return true, nil
}
