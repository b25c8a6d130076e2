// Package store exports finished runs as JSON, either to a file or to
// stdout for piping into plotting tools.
package store

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/solver"
)

type ExportParticle struct {
	ID        int        `json:"id"`
	Pos       [3]float64 `json:"pos"`
	Vel       [3]float64 `json:"vel"`
	Dens      float64    `json:"dens"`
	Pres      float64    `json:"pres"`
	Ene       float64    `json:"ene"`
	Sml       float64    `json:"sml"`
	Neighbors int        `json:"neighbors"`
}

type ExportData struct {
	Scenario          string             `json:"scenario"`
	Dt                float64            `json:"dt"`
	Duration          float64            `json:"duration"`
	Steps             int                `json:"steps"`
	Time              float64            `json:"time"`
	TruncatedSearches int                `json:"truncated_searches"`
	Metrics           map[string]float64 `json:"metrics"`
	Particles         []ExportParticle   `json:"particles"`
}

func build(scenario string, dt, duration float64, result *solver.Result, parts []particle.Particle) ExportData {
	data := ExportData{
		Scenario:          scenario,
		Dt:                dt,
		Duration:          duration,
		Steps:             result.Steps,
		Time:              result.Time,
		TruncatedSearches: result.TruncatedSearches,
		Metrics:           result.Metrics,
		Particles:         make([]ExportParticle, len(parts)),
	}
	for i := range parts {
		p := &parts[i]
		data.Particles[i] = ExportParticle{
			ID:        p.ID,
			Pos:       [3]float64(p.Pos),
			Vel:       [3]float64(p.Vel),
			Dens:      p.Dens,
			Pres:      p.Pres,
			Ene:       p.Ene,
			Sml:       p.Sml,
			Neighbors: p.Neighbor,
		}
	}
	return data
}

func write(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path, scenario string, dt, duration float64, result *solver.Result, parts []particle.Particle) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return write(file, build(scenario, dt, duration, result, parts))
}

func ExportJSONStdout(scenario string, dt, duration float64, result *solver.Result, parts []particle.Particle) error {
	return write(os.Stdout, build(scenario, dt, duration, result, parts))
}
