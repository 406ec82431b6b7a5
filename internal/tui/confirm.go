package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/tierup/internal/workflow"
)

// ConfirmModel asks the user to approve a cost. Single y/n keystrokes answer
// immediately; longer answers are typed and submitted with enter.
type ConfirmModel struct {
	description string
	cost        float64
	input       textinput.Model
	width       int

	answered bool
	approved bool
	hint     string
}

// NewConfirmModel creates a prompt for description at the given cost.
func NewConfirmModel(description string, cost float64) ConfirmModel {
	ti := textinput.New()
	ti.Placeholder = "y/n"
	ti.Focus()
	ti.CharLimit = 8
	ti.Width = 10

	return ConfirmModel{
		description: description,
		cost:        cost,
		input:       ti,
		width:       72,
	}
}

// Init implements tea.Model.
func (m ConfirmModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m.answer(false)
		case tea.KeyEnter:
			if approved, ok := parseAnswer(m.input.Value()); ok {
				return m.answer(approved)
			}
			m.hint = "Please answer y or n."
			m.input.Reset()
			return m, nil
		}

		if m.input.Value() == "" {
			switch msg.String() {
			case "y", "Y":
				return m.answer(true)
			case "n", "N":
				return m.answer(false)
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ConfirmModel) answer(approved bool) (tea.Model, tea.Cmd) {
	m.answered = true
	m.approved = approved
	m.input.Blur()
	return m, tea.Quit
}

// View implements tea.Model.
func (m ConfirmModel) View() string {
	if m.answered {
		if m.approved {
			return successStyle.Render("Approved") + mutedStyle.Render(fmt.Sprintf(" $%.2f", m.cost)) + "\n"
		}
		return warningStyle.Render("Denied") + mutedStyle.Render(fmt.Sprintf(" $%.2f", m.cost)) + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Approval required"))
	b.WriteString("\n")
	b.WriteString(m.description)
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Estimated cost"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("$%.2f", m.cost)))
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render("> "))
	b.WriteString(m.input.View())
	if m.hint != "" {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render(m.hint))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("y/n, enter to submit, esc to deny"))

	return boxStyle.Width(m.width-2).Render(b.String()) + "\n"
}

// Answered reports whether the user gave an answer.
func (m ConfirmModel) Answered() bool {
	return m.answered
}

// Approved reports whether the user approved.
func (m ConfirmModel) Approved() bool {
	return m.answered && m.approved
}

func parseAnswer(s string) (approved, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}

// Confirmer runs a ConfirmModel for every approval request.
type Confirmer struct {
	in   io.Reader
	out  io.Writer
	opts []tea.ProgramOption
}

var _ workflow.Confirmer = (*Confirmer)(nil)

// NewConfirmer creates a Confirmer reading keys from in and drawing on out.
// Extra program options are appended after the input and output options.
func NewConfirmer(in io.Reader, out io.Writer, opts ...tea.ProgramOption) *Confirmer {
	return &Confirmer{in: in, out: out, opts: opts}
}

// Confirm blocks until the user answers. Quitting without an answer denies.
func (c *Confirmer) Confirm(ctx context.Context, description string, cost float64) (bool, error) {
	opts := append([]tea.ProgramOption{
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
		tea.WithContext(ctx),
	}, c.opts...)

	final, err := tea.NewProgram(NewConfirmModel(description, cost), opts...).Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return false, fmt.Errorf("run approval prompt: %w", err)
	}

	m, ok := final.(ConfirmModel)
	if !ok {
		return false, nil
	}
	return m.Approved(), nil
}
