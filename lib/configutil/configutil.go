package configutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// LocalPath returns the path of the local override file for a config file,
// "config.json5" -> "config.local.json5".
func LocalPath(name string) string {
	dirname := filepath.Dir(name)
	prefixname, ext := splitExt(filepath.Base(name))
	return filepath.Join(dirname, fmt.Sprintf("%s.local.%s", prefixname, ext))
}

func readInto[T any](path string, out *T) (found bool, err error) {
	contents, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfigOver reads a configuration file on top of `defaults`, fields
// that are not present in the file keep their default value.
// `name` should come with a file extension, the following files are merged,
// where higher number is more prioritized.
// 1. defaults
// 2. <name>.<ext>
// 3. <name>.local.<ext>
//
// if neither file exists, os.ErrNotExist is returned alongside the defaults.
func ReadConfigOver[T any](name string, defaults T) (T, error) {
	out := defaults

	foundDefault, err := readInto(name, &out)
	if err != nil {
		return defaults, err
	}

	localFilepath := LocalPath(name)
	var override T
	foundLocal, err := readInto(localFilepath, &override)
	if err != nil {
		return defaults, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return defaults, err
		}
		slog.Info("merging config with local overrides", "local", localFilepath)
	}

	if !foundDefault && !foundLocal {
		return defaults, os.ErrNotExist
	}
	return out, nil
}

// ReadConfig is ReadConfigOver with the zero value of T as defaults.
func ReadConfig[T any](name string) (T, error) {
	var zero T
	return ReadConfigOver(name, zero)
}

// ReadConfig but it recursively goes up the filesystem until the root
// to find a configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	root, err := filepath.Abs("/")
	if err != nil {
		return defaultOut, err
	}
	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for current != root {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if os.IsNotExist(err) {
			current = filepath.Join(current, "..")
			continue
		}
		if err != nil {
			return defaultOut, err
		}

		return config, nil
	}

	return defaultOut, os.ErrNotExist
}

// Duration is a time.Duration that is written as a string ("10s", "24h")
// in configuration files.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	err := json5.Unmarshal(data, &text)
	if err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
