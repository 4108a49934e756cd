// Package prompt implements the interactive questions asked by the search
// workflow: pick one of many, yes/no and free text.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrAborted is returned when the user cancels a prompt (Esc or Ctrl+C).
var ErrAborted = errors.New("prompt aborted")

// ErrNoTerminal is returned when prompting without an interactive terminal.
var ErrNoTerminal = errors.New("interactive prompt requires a terminal")

// Prompter asks the user questions.
type Prompter interface {
	// Select returns the index of the chosen option.
	Select(title string, options []string) (int, error)
	Confirm(title string, defaultYes bool) (bool, error)
	// Input returns a line of text accepted by validate (nil accepts anything).
	Input(title string, validate func(string) error) (string, error)
}

// NonEmpty rejects blank input.
func NonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("value must not be empty")
	}
	return nil
}

// maxSelectRows is the number of options shown at once.
const maxSelectRows = 15

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

// Terminal is a bubbletea-backed Prompter.
type Terminal struct {
	in  *os.File
	out io.Writer
}

// NewTerminal prompts on in and draws on out.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// Interactive reports whether the input is a terminal.
func (t *Terminal) Interactive() bool {
	return term.IsTerminal(int(t.in.Fd()))
}

func (t *Terminal) run(m tea.Model) (tea.Model, error) {
	if !t.Interactive() {
		return nil, ErrNoTerminal
	}
	final, err := tea.NewProgram(m, tea.WithInput(t.in), tea.WithOutput(t.out)).Run()
	if err != nil {
		return nil, fmt.Errorf("run prompt: %w", err)
	}
	return final, nil
}

func (t *Terminal) Select(title string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, errors.New("nothing to select")
	}
	final, err := t.run(newSelectModel(title, options))
	if err != nil {
		return -1, err
	}
	m := final.(selectModel)
	if m.aborted {
		return -1, ErrAborted
	}
	return m.chosen, nil
}

func (t *Terminal) Confirm(title string, defaultYes bool) (bool, error) {
	final, err := t.run(confirmModel{title: title, answer: defaultYes})
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.aborted {
		return false, ErrAborted
	}
	return m.answer, nil
}

func (t *Terminal) Input(title string, validate func(string) error) (string, error) {
	final, err := t.run(newInputModel(title, validate))
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	if m.aborted {
		return "", ErrAborted
	}
	return m.value, nil
}

type selectModel struct {
	title   string
	options []string
	cursor  int
	offset  int
	chosen  int
	done    bool
	aborted bool
}

func newSelectModel(title string, options []string) selectModel {
	return selectModel{title: title, options: options, chosen: -1}
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case "enter":
		m.chosen = m.cursor
		m.done = true
		return m, tea.Quit
	case "ctrl+c", "esc", "q":
		m.aborted = true
		m.done = true
		return m, tea.Quit
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+maxSelectRows {
		m.offset = m.cursor - maxSelectRows + 1
	}
	return m, nil
}

func (m selectModel) View() string {
	if m.done {
		if m.aborted {
			return ""
		}
		return titleStyle.Render(m.title) + " " + answerStyle.Render(m.options[m.chosen]) + "\n"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title) + "\n")
	end := min(m.offset+maxSelectRows, len(m.options))
	for i := m.offset; i < end; i++ {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> "+m.options[i]) + "\n")
		} else {
			b.WriteString("  " + m.options[i] + "\n")
		}
	}
	b.WriteString(hintStyle.Render("↑/↓ move • enter select • esc cancel") + "\n")
	return b.String()
}

type confirmModel struct {
	title   string
	answer  bool
	done    bool
	aborted bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.answer = true
	case "n", "N":
		m.answer = false
	case "enter":
	case "ctrl+c", "esc":
		m.aborted = true
	default:
		return m, nil
	}
	m.done = true
	return m, tea.Quit
}

func (m confirmModel) View() string {
	hint := "(y/N)"
	if m.answer {
		hint = "(Y/n)"
	}
	if m.done {
		if m.aborted {
			return ""
		}
		answer := "No"
		if m.answer {
			answer = "Yes"
		}
		return titleStyle.Render(m.title) + " " + answerStyle.Render(answer) + "\n"
	}
	return titleStyle.Render(m.title) + " " + hintStyle.Render(hint) + " "
}

type inputModel struct {
	title    string
	input    textinput.Model
	validate func(string) error
	err      error
	value    string
	done     bool
	aborted  bool
}

func newInputModel(title string, validate func(string) error) inputModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	return inputModel{title: title, input: ti, validate: validate}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			v := m.input.Value()
			if m.validate != nil {
				if err := m.validate(v); err != nil {
					m.err = err
					return m, nil
				}
			}
			m.value = v
			m.done = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.aborted = true
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.err = nil
	return m, cmd
}

func (m inputModel) View() string {
	if m.done {
		if m.aborted {
			return ""
		}
		return titleStyle.Render(m.title) + " " + answerStyle.Render(m.value) + "\n"
	}
	view := titleStyle.Render(m.title) + "\n" + m.input.View() + "\n"
	if m.err != nil {
		view += errorStyle.Render(m.err.Error()) + "\n"
	}
	return view
}
