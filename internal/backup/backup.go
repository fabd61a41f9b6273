// Package backup exports and imports kuramap run history as checksummed,
// compressed archives.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/kuramap/internal/store"
)

// filePrefix and fileExt name archives written by GeneratePath.
const (
	filePrefix = "kuramap-runs-"
	fileExt    = ".json.gz"
)

// DefaultDir returns the default archive directory (~/.kuramap/backups/).
func DefaultDir() (string, error) {
	dir, err := store.GlobalKuramapPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backups"), nil
}

// GeneratePath creates a timestamped archive filename in dir.
func GeneratePath(dir string) string {
	ts := time.Now().UTC().Format("20060102-150405.000000000")
	return filepath.Join(dir, filePrefix+ts+fileExt)
}

// Export writes every run in s, with its epochs, to path.
func Export(ctx context.Context, s store.RunStore, path string) (*Archive, error) {
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	a := &Archive{
		CreatedAt: time.Now().UTC(),
		Runs:      make([]ArchivedRun, len(runs)),
	}
	for i, run := range runs {
		epochs, err := s.Epochs(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read epochs of %s: %w", run.ID, err)
		}
		a.Runs[i] = ArchivedRun{Run: run, Epochs: epochs}
	}

	if err := Write(path, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ImportResult counts what Import did.
type ImportResult struct {
	RunsImported   int `json:"runs_imported"`
	RunsSkipped    int `json:"runs_skipped"`
	EpochsImported int `json:"epochs_imported"`
}

// Import restores the runs archived at path into s. Runs whose ID already
// exists are skipped, so importing the same archive twice is harmless.
func Import(ctx context.Context, s store.RunStore, path string) (*ImportResult, error) {
	a, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, ar := range a.Runs {
		if ar.ID == "" {
			return nil, fmt.Errorf("archived run without an id")
		}
		_, err := s.GetRun(ctx, ar.ID)
		if err == nil {
			result.RunsSkipped++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to check run %s: %w", ar.ID, err)
		}

		if _, err := s.CreateRun(ctx, ar.Run); err != nil {
			return nil, fmt.Errorf("failed to restore run %s: %w", ar.ID, err)
		}
		for _, rec := range ar.Epochs {
			if err := s.RecordEpoch(ctx, ar.ID, rec); err != nil {
				return nil, fmt.Errorf("failed to restore run %s: %w", ar.ID, err)
			}
		}
		result.RunsImported++
		result.EpochsImported += len(ar.Epochs)
	}
	return result, nil
}
