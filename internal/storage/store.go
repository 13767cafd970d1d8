package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/loopsim/internal/config"
	"github.com/san-kum/loopsim/internal/integrators"
	"github.com/san-kum/loopsim/internal/sim"
	"go.uber.org/multierr"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
	configFile   = "config.yaml"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Timestamp time.Time            `json:"timestamp"`
	TStart    float64              `json:"t_start"`
	TEnd      float64              `json:"t_end"`
	Samples   int                  `json:"samples"`
	Segments  int                  `json:"segments"`
	Stats     integrators.Stats    `json:"stats"`
	Complete  bool                 `json:"complete"`
	Error     string               `json:"error,omitempty"`
	Metrics   map[string]float64   `json:"metrics"`
	Gains     []map[string]float64 `json:"gains,omitempty"`
}

// NewMetadata describes a finished run. runErr is the error Run returned,
// if any.
func NewMetadata(cfg *config.Config, tr *sim.Trajectory, runErr error, metrics map[string]float64) RunMetadata {
	meta := RunMetadata{
		Name:      cfg.Name,
		Timestamp: time.Now(),
		TStart:    cfg.Horizon.Start,
		TEnd:      cfg.Horizon.End,
		Samples:   tr.Len(),
		Segments:  tr.Segments,
		Stats:     tr.Stats,
		Complete:  tr.Complete,
		Metrics:   make(map[string]float64, len(metrics)),
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}
	for _, l := range cfg.Loops {
		meta.Gains = append(meta.Gains, l.PID().GetParams())
	}
	for k, v := range metrics {
		// JSON has no NaN or Inf.
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			meta.Metrics[k] = v
		}
	}
	return meta
}

// Save writes a run directory holding the metadata, the configuration that
// produced the run and its samples. An empty meta.ID is filled in.
func (s *Store) Save(meta RunMetadata, cfg *config.Config, tr *sim.Trajectory) (string, error) {
	if meta.ID == "" {
		name := meta.Name
		if name == "" {
			name = "run"
		}
		meta.ID = fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
	}
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}
	if err := writeSamples(filepath.Join(runDir, samplesFile), tr); err != nil {
		return "", err
	}

	return meta.ID, nil
}

func writeJSON(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSamples(path string, tr *sim.Trajectory) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	return WriteCSV(f, tr)
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

// LoadSamples reads a run's samples back into a trajectory, together with
// the solver statistics recorded in its metadata.
func (s *Store) LoadSamples(runID string) (*sim.Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tr, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	tr.Stats = meta.Stats
	tr.Segments = meta.Segments
	tr.Complete = meta.Complete
	return tr, nil
}
