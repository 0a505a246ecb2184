package agentdef

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefinitionFiles are the file names Discover looks for, in priority order.
var DefinitionFiles = []string{
	"root_agent.yaml",
	"root_agent.yml",
	"root_agent.json",
	"root_agent.jsonc",
}

// Discover scans the immediate subdirectories of dir for agent definitions.
// Each subdirectory holding one of DefinitionFiles becomes an app named after
// the directory. Hidden directories and directories without a definition are
// skipped. Results are sorted by app name.
func Discover(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading agents dir: %w", err)
	}

	var defs []Definition
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		path, ok := findDefinitionFile(filepath.Join(dir, name))
		if !ok {
			continue
		}
		def, err := LoadFile(path, name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func findDefinitionFile(dir string) (string, bool) {
	for _, f := range DefinitionFiles {
		p := filepath.Join(dir, f)
		if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// LoadFile parses and validates a single definition file for app.
func LoadFile(path, app string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, &DefinitionError{AppName: app, Source: path, Err: err}
	}

	def, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Definition{}, &DefinitionError{AppName: app, Source: path, Err: err}
	}
	def.AppName = app
	def.Source = path

	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Parse decodes a definition. ext selects the format: ".json" and ".jsonc"
// are JSON with comments and trailing commas allowed, anything else is YAML.
// Unknown fields are rejected in both formats.
func Parse(data []byte, ext string) (Definition, error) {
	var def Definition
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return Definition{}, fmt.Errorf("failed to parse json: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			if errors.Is(err, io.EOF) {
				return Definition{}, errors.New("definition file is empty")
			}
			return Definition{}, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}
	return def, nil
}
