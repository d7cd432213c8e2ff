// Package tui plays a storyworld interactively in the terminal.
package tui

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"storyweave/internal/engine"
	"storyweave/internal/storyworld"
)

type sessionState int

const (
	statePlaying sessionState = iota
	stateFinished
)

type model struct {
	state       sessionState
	world       *storyworld.World
	seed        int64
	maxSteps    int
	playthrough *engine.Playthrough
	textInput   textinput.Model
	viewport    viewport.Model
	notice      string
	gameLog     string
	width       int
	height      int
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	effectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87AF87"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)
)

// NewModel starts a playthrough of w seeded with seed.
func NewModel(w *storyworld.World, seed int64, maxSteps int) model {
	ti := textinput.New()
	ti.Placeholder = "Option number or id..."
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 40

	m := model{
		world:     w,
		seed:      seed,
		maxSteps:  maxSteps,
		textInput: ti,
		width:     80,
		height:    24,
	}
	m.restart()
	m.refresh()
	return m
}

func (m *model) restart() {
	m.playthrough = engine.Start(m.world, rand.New(rand.NewSource(m.seed)), m.maxSteps)
	m.state = statePlaying
	m.notice = ""
	m.gameLog = ""
	if m.world.Title != "" {
		m.gameLog = gameStyle.Bold(true).Render(m.world.Title) + "\n\n"
	}
	m.describeEncounter()
	m.checkFinished()
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			input := strings.TrimSpace(m.textInput.Value())
			m.textInput.Reset()
			switch input {
			case "":
				return m, nil
			case "/quit":
				return m, tea.Quit
			case "/restart":
				m.seed++
				m.restart()
				m.refresh()
				return m, nil
			}
			if m.state == statePlaying {
				m.choose(input)
				m.refresh()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = int(float64(msg.Width) * 0.7)
		m.viewport.Height = msg.Height - 6
		m.refresh()
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// choose resolves input to an open option, by 1-based number or by id.
func (m *model) choose(input string) {
	open := m.playthrough.OpenOptions()
	var chosen *storyworld.Option
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(open) {
		chosen = open[n-1]
	}
	for _, o := range open {
		if chosen == nil && o.ID == input {
			chosen = o
		}
	}
	if chosen == nil {
		m.notice = fmt.Sprintf("No open option %q.", input)
		return
	}
	m.notice = ""

	step, err := m.playthrough.Choose(chosen.ID)
	if err != nil {
		m.notice = err.Error()
		return
	}
	logWidth := m.logWidth()
	m.gameLog += userStyle.Width(logWidth).Render("> "+optionLabel(chosen)) + "\n\n"
	if r := reaction(chosen, step.Reaction); r != nil && r.Text != "" {
		m.gameLog += gameStyle.Width(logWidth).Render(r.Text) + "\n"
	}
	for _, a := range step.Applied {
		line := fmt.Sprintf("%s %+.3f -> %.3f", a.Target, a.After-a.Before, a.After)
		if a.Clamped {
			line += " (clamped)"
		}
		m.gameLog += effectStyle.Render(line) + "\n"
	}
	m.gameLog += "\n"
	if !m.playthrough.Done() {
		m.describeEncounter()
	}
	m.checkFinished()
}

func (m *model) describeEncounter() {
	e := m.playthrough.Encounter()
	if e == nil {
		return
	}
	logWidth := m.logWidth()
	if e.Title != "" {
		m.gameLog += gameStyle.Bold(true).Render(e.Title) + "\n"
	}
	if e.Text != "" {
		m.gameLog += gameStyle.Width(logWidth).Render(e.Text) + "\n"
	}
	m.gameLog += "\n"
}

func (m *model) checkFinished() {
	if !m.playthrough.Done() {
		return
	}
	m.state = stateFinished
	m.gameLog += titleStyle.Render(outcomeLine(m.playthrough.Outcome())) + "\n"
}

func (m *model) refresh() {
	if m.viewport.Width == 0 {
		m.viewport = viewport.New(m.logWidth(), max(m.height-6, 1))
	}
	m.viewport.SetContent(m.renderLog())
	m.viewport.GotoBottom()
}

func (m model) logWidth() int {
	return int(float64(m.width) * 0.7)
}

func (m model) View() string {
	mainView := lipgloss.JoinHorizontal(lipgloss.Top,
		m.viewport.View(),
		m.renderState(),
	)

	help := "Commands: option number or id, /restart, /quit."
	if m.state == stateFinished {
		help = "The story is over. /restart to play again, /quit to leave."
	}
	parts := []string{mainView, m.renderOptions(), "\n" + m.textInput.View()}
	if m.notice != "" {
		parts = append(parts, m.notice)
	}
	parts = append(parts, "\n"+helpStyle.Render(help))
	return "\n" + lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m model) renderOptions() string {
	if m.state != statePlaying {
		return ""
	}
	var b strings.Builder
	for i, o := range m.playthrough.OpenOptions() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, optionLabel(o))
	}
	return b.String()
}

func (m model) renderState() string {
	values := m.playthrough.Values()

	content := titleStyle.Render("TURN") + "\n" + strconv.Itoa(m.playthrough.Turn()) + "\n\n"
	content += titleStyle.Render("STATE") + "\n"
	keys := values.Keys()
	if len(keys) == 0 {
		content += "(untouched)\n"
	}
	for _, k := range keys {
		content += fmt.Sprintf("%s: %.3f\n", k, values.Get(k))
	}

	stateWidth := int(float64(m.width) * 0.28)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(content)
}

func (m model) renderLog() string {
	return m.gameLog
}

func optionLabel(o *storyworld.Option) string {
	if o.Text != "" {
		return o.Text
	}
	return o.ID
}

func reaction(o *storyworld.Option, id string) *storyworld.Reaction {
	for _, r := range o.Reactions {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func outcomeLine(o engine.Outcome) string {
	switch o.Kind {
	case engine.OutcomeEnded:
		return "THE END: " + o.Ending
	case engine.OutcomeDeadEnd:
		return "DEAD END: no encounter can follow"
	case engine.OutcomeBudgetExceeded:
		return "STOPPED: step budget exhausted"
	case engine.OutcomeAborted:
		return fmt.Sprintf("ABORTED: %v", o.Err)
	default:
		return ""
	}
}

func Run(w *storyworld.World, seed int64, maxSteps int) error {
	p := tea.NewProgram(NewModel(w, seed, maxSteps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
