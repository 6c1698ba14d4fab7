package director

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteCueSheet writes a cue sheet to a YAML file.
func WriteCueSheet(sheet *CueSheet, path string) error {
	data, err := yaml.Marshal(sheet)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// EncodeCueSheet writes a cue sheet as YAML to w.
func EncodeCueSheet(w io.Writer, sheet *CueSheet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sheet); err != nil {
		return err
	}
	return enc.Close()
}

// ReadCueSheet reads a cue sheet from a YAML file.
func ReadCueSheet(path string) (*CueSheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sheet CueSheet
	if err := yaml.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("parse cue sheet %s: %w", path, err)
	}
	if sheet.Version != CueSheetVersion {
		return nil, fmt.Errorf("cue sheet %s: unsupported version %q", path, sheet.Version)
	}

	return &sheet, nil
}
