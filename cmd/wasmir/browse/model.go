package browse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pgavlin/wasmir/ir"
)

const listHeight = 8

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Model is an interactive function browser. The filter narrows the function list; the IR of the selected
// function is shown in a scrollable viewport.
type Model struct {
	title   string
	module  *ir.Module
	printer ir.Printer

	filter   textinput.Model
	viewport viewport.Model
	matches  []*ir.Function
	selected int
}

func New(title string, m *ir.Module, style ir.Style, width, height int) *Model {
	filter := textinput.New()
	filter.Prompt = "filter: "
	filter.Placeholder = "name, export, or index"
	filter.Focus()

	model := &Model{
		title:    title,
		module:   m,
		printer:  ir.Printer{Style: style, Module: m},
		filter:   filter,
		viewport: viewport.New(width, 0),
	}
	model.resize(width, height)
	model.refilter()
	return model
}

// Matches returns the functions that pass the current filter.
func (m *Model) Matches() []*ir.Function {
	return m.matches
}

// Selected returns the selected function, if any.
func (m *Model) Selected() (*ir.Function, bool) {
	if m.selected >= len(m.matches) {
		return nil, false
	}
	return m.matches[m.selected], true
}

func (m *Model) resize(width, height int) {
	m.viewport.Width = width

	// title, filter, list, and help
	chrome := 2 + listHeight + 2
	m.viewport.Height = height - chrome
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
}

func matches(f *ir.Function, filter string) bool {
	if filter == "" {
		return true
	}
	if index, err := strconv.ParseUint(filter, 10, 32); err == nil && uint32(index) == f.Index {
		return true
	}
	if strings.Contains(strings.ToLower(ir.FunctionName(f.Index, f.Name)), filter) {
		return true
	}
	for _, e := range f.Exports {
		if strings.Contains(strings.ToLower(e), filter) {
			return true
		}
	}
	return false
}

func (m *Model) refilter() {
	filter := strings.ToLower(strings.TrimSpace(m.filter.Value()))

	m.matches = nil
	for _, f := range m.module.Functions {
		if matches(f, filter) {
			m.matches = append(m.matches, f)
		}
	}
	if m.selected >= len(m.matches) {
		m.selected = len(m.matches) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	m.render()
}

func (m *Model) render() {
	f, ok := m.Selected()
	if !ok {
		m.viewport.SetContent("no matching functions")
		return
	}

	var b strings.Builder
	if err := m.printer.Fprint(&b, f); err != nil {
		b.WriteString(err.Error())
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoTop()
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.selected > 0 {
				m.selected--
				m.render()
			}
			return m, nil
		case tea.KeyDown:
			if m.selected < len(m.matches)-1 {
				m.selected++
				m.render()
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		before := m.filter.Value()
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		if m.filter.Value() != before {
			m.refilter()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("wasmir"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n")

	// Keep the selection inside the visible window of the list.
	first := 0
	if m.selected >= listHeight {
		first = m.selected - listHeight + 1
	}
	for i := first; i < first+listHeight; i++ {
		if i < len(m.matches) {
			line := describe(m.matches[i])
			if i == m.selected {
				line = selectedStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%d/%d functions • ↑/↓ select • pgup/pgdn scroll • esc quit", len(m.matches), len(m.module.Functions))))
	return b.String()
}

func describe(f *ir.Function) string {
	s := fmt.Sprintf("%4d %s", f.Index, ir.FunctionName(f.Index, f.Name))
	if f.IsImport() {
		s += " (import)"
	}
	if len(f.Exports) != 0 {
		s += fmt.Sprintf(" [%s]", strings.Join(f.Exports, ", "))
	}
	return s
}
