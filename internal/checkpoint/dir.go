package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	checkpointExt = ".rmck"
	metricsExt    = ".metrics.json"
)

// DirStore keeps one file per checkpoint in a directory.
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

func (s *DirStore) Init(_ context.Context) error {
	return os.MkdirAll(s.root, 0o755)
}

// Path returns the file a named checkpoint is stored in.
func (s *DirStore) Path(name string) string {
	return filepath.Join(s.root, name+checkpointExt)
}

func (s *DirStore) SaveCheckpoint(_ context.Context, name string, c *Checkpoint) error {
	if strings.ContainsRune(name, filepath.Separator) {
		return fmt.Errorf("invalid checkpoint name %q", name)
	}
	blob, err := Encode(c)
	if err != nil {
		return err
	}
	return writeAtomic(s.Path(name), blob)
}

func (s *DirStore) GetCheckpoint(_ context.Context, name string) (*Checkpoint, bool, error) {
	blob, err := os.ReadFile(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	c, err := Decode(blob)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", s.Path(name), err)
	}
	return c, true, nil
}

func (s *DirStore) ListCheckpoints(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), checkpointExt) {
			names = append(names, strings.TrimSuffix(e.Name(), checkpointExt))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *DirStore) SaveMetrics(_ context.Context, runID string, history []EpochMetrics) error {
	b, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.root, runID+metricsExt), b)
}

func (s *DirStore) GetMetrics(_ context.Context, runID string) ([]EpochMetrics, bool, error) {
	b, err := os.ReadFile(filepath.Join(s.root, runID+metricsExt))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var history []EpochMetrics
	if err := json.Unmarshal(b, &history); err != nil {
		return nil, false, fmt.Errorf("decode metrics %s: %w", runID, err)
	}
	return history, true, nil
}

// writeAtomic replaces path so a crash never leaves a partial checkpoint.
func writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
