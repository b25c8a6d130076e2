// Package tui renders a running simulation in the terminal: a density
// profile updated live while the solver advances, with pause and quit
// controls.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/sphlab/internal/solver"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	frame = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("238")).
		Padding(0, 1)
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model steps the solver a few steps per frame and plots the density
// profile along the first axis.
type Model struct {
	solver   *solver.Solver
	scenario string
	dt       float64
	duration float64

	stepsPerFrame int
	paused        bool
	done          bool
	err           error

	width  int
	height int
}

// NewModel wraps an assembled, uninitialized solver.
func NewModel(s *solver.Solver, scenario string, dt, duration float64) *Model {
	return &Model{
		solver:        s,
		scenario:      scenario,
		dt:            dt,
		duration:      duration,
		stepsPerFrame: 4,
		width:         90,
		height:        24,
	}
}

func (m *Model) Init() tea.Cmd {
	if err := m.solver.Initialize(); err != nil {
		m.err = err
		return tea.Quit
	}
	return tick()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "+":
			m.stepsPerFrame *= 2
		case "-":
			if m.stepsPerFrame > 1 {
				m.stepsPerFrame /= 2
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.paused || m.done {
			return m, tick()
		}
		for i := 0; i < m.stepsPerFrame && !m.done; i++ {
			if m.solver.Time() >= m.duration {
				m.done = true
				break
			}
			if err := m.solver.Advance(m.dt); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) View() string {
	if m.err != nil {
		return yellow.Render(fmt.Sprintf("error: %v\n", m.err))
	}

	var b strings.Builder

	title := cyan.Render(m.scenario) + dim.Render(fmt.Sprintf(
		"  t=%.4f / %.4f  step %d", m.solver.Time(), m.duration, m.solver.StepCount()))
	b.WriteString(title)
	b.WriteString("\n")

	profile := densityProfile(m.solver)
	plotWidth := m.width - 12
	if plotWidth < 20 {
		plotWidth = 20
	}
	graph := asciigraph.Plot(profile,
		asciigraph.Height(m.height-8),
		asciigraph.Width(plotWidth),
		asciigraph.Caption("density along x"),
	)
	b.WriteString(frame.Render(graph))
	b.WriteString("\n")

	status := fmt.Sprintf("particles %d  truncated searches %d  speed %dx",
		len(m.solver.Particles()), m.solver.TruncatedSearches(), m.stepsPerFrame)
	if m.done {
		b.WriteString(green.Render("finished") + dim.Render("  "+status))
	} else if m.paused {
		b.WriteString(yellow.Render("paused") + dim.Render("  "+status))
	} else {
		b.WriteString(white.Render("running") + dim.Render("  "+status))
	}
	b.WriteString(dim.Render("\n[space] pause  [+/-] speed  [q] quit\n"))

	return b.String()
}

// Err reports an error raised inside the step loop after the program
// exits.
func (m *Model) Err() error { return m.err }

// densityProfile samples particle density ordered by x position.
func densityProfile(s *solver.Solver) []float64 {
	parts := s.Particles()
	idx := make([]int, len(parts))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return parts[idx[a]].Pos[0] < parts[idx[b]].Pos[0]
	})

	profile := make([]float64, len(idx))
	for i, j := range idx {
		profile[i] = parts[j].Dens
	}
	return profile
}

// Run drives the live view until completion or quit.
func Run(s *solver.Solver, scenario string, dt, duration float64) error {
	m := NewModel(s, scenario, dt, duration)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return m.Err()
}
