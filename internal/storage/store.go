// Package storage persists finished runs under a base directory: one
// directory per run holding metadata.json and the final particle
// profile as CSV.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/solver"
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
	ID                string             `json:"id"`
	Scenario          string             `json:"scenario"`
	Timestamp         time.Time          `json:"timestamp"`
	Seed              int64              `json:"seed"`
	Dt                float64            `json:"dt"`
	Duration          float64            `json:"duration"`
	Steps             int                `json:"steps"`
	Particles         int                `json:"particles"`
	TruncatedSearches int                `json:"truncated_searches"`
	Metrics           map[string]float64 `json:"metrics"`
}

var profileHeader = []string{
	"id", "x", "y", "z", "vx", "vy", "vz",
	"dens", "pres", "ene", "sml", "neighbors",
}

func (s *Store) Save(scenario string, dt, duration float64, seed int64, result *solver.Result, parts []particle.Particle) (string, error) {
	runID := fmt.Sprintf("%s_%d", scenario, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:                runID,
		Scenario:          scenario,
		Timestamp:         time.Now(),
		Seed:              seed,
		Dt:                dt,
		Duration:          duration,
		Steps:             result.Steps,
		Particles:         len(parts),
		TruncatedSearches: result.TruncatedSearches,
		Metrics:           result.Metrics,
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvPath := filepath.Join(runDir, "profile.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if err := w.Write(profileHeader); err != nil {
		return "", err
	}
	for i := range parts {
		p := &parts[i]
		row := []string{
			strconv.Itoa(p.ID),
			formatFloat(p.Pos[0]), formatFloat(p.Pos[1]), formatFloat(p.Pos[2]),
			formatFloat(p.Vel[0]), formatFloat(p.Vel[1]), formatFloat(p.Vel[2]),
			formatFloat(p.Dens), formatFloat(p.Pres), formatFloat(p.Ene),
			formatFloat(p.Sml), strconv.Itoa(p.Neighbor),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 9, 64)
}

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

		metaPath := filepath.Join(s.baseDir, entry.Name(), "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		runs = append(runs, meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// ProfileRow is one particle of a stored profile.
type ProfileRow struct {
	ID        int
	Values    []float64 // columns past the id, in profileHeader order
	Neighbors int
}

func (s *Store) LoadProfile(runID string) ([]ProfileRow, error) {
	csvPath := filepath.Join(s.baseDir, runID, "profile.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(profileHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []ProfileRow{}, nil
	}

	rows := make([]ProfileRow, 0, len(records)-1)
	for _, record := range records[1:] {
		id, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}
		neighbors, err := strconv.Atoi(record[len(record)-1])
		if err != nil {
			continue
		}

		values := make([]float64, 0, len(record)-2)
		ok := true
		for _, field := range record[1 : len(record)-1] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				ok = false
				break
			}
			values = append(values, v)
		}
		if !ok {
			continue
		}
		rows = append(rows, ProfileRow{ID: id, Values: values, Neighbors: neighbors})
	}

	return rows, nil
}
