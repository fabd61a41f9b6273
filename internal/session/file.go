package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveResult writes v as indented JSON to path, creating parent
// directories. The write is atomic: a temp file is renamed into place.
func SaveResult(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating result directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing result temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming result file: %w", err)
	}
	return nil
}

// LoadTrainResult reads a result written by SaveResult.
func LoadTrainResult(path string) (*TrainResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}
	var res TrainResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unmarshaling result: %w", err)
	}
	return &res, nil
}
