package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/pdf-runtime/boundary"
	"github.com/wippyai/pdf-runtime/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectCall modelState = iota
	stateInputArgs
	stateShowResult
	statePages
)

type interactiveModel struct {
	err      error
	host     *boundary.Host
	result   string
	files    []string
	inputs   []textinput.Model
	pages    table.Model
	lastCtx  int64
	lastDoc  int64
	selected int
	focusIdx int
	state    modelState
}

type callResultMsg struct {
	err    error
	call   string
	value  any
	result string
}

func newInteractiveModel(rt *runtime.Runtime, files []string) *interactiveModel {
	return &interactiveModel{
		host:  boundary.New(rt, nil),
		files: files,
		state: stateSelectCall,
		pages: table.New(
			table.WithColumns([]table.Column{
				{Title: "Page", Width: 6},
				{Title: "Width", Width: 10},
				{Title: "Height", Width: 10},
				{Title: "Paper", Width: 10},
			}),
			table.WithHeight(12),
			table.WithFocused(true),
		),
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectCall && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectCall && m.selected < len(boundary.Calls)-1 {
				m.selected++
			}

		case "p":
			if m.state == stateSelectCall && m.lastDoc != 0 {
				m.loadPages()
				m.state = statePages
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelectCall:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.invoke
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.invoke

			case stateShowResult, statePages:
				m.reset()
				return m, nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			if m.state != stateSelectCall {
				m.reset()
				return m, nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		if msg.err == nil {
			switch msg.call {
			case "init_context":
				m.lastCtx = msg.value.(int64)
			case "open_document":
				m.lastDoc = msg.value.(int64)
			}
		}
	}

	switch m.state {
	case stateInputArgs:
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	case statePages:
		var cmd tea.Cmd
		m.pages, cmd = m.pages.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectCall
	m.inputs = nil
	m.result = ""
	m.err = nil
}

func (m *interactiveModel) prepareInputs() {
	c := boundary.Calls[m.selected]
	m.inputs = make([]textinput.Model, len(c.Params))
	for i, p := range c.Params {
		ti := textinput.New()
		ti.Placeholder = boundary.TypeString(p.Type)
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		switch {
		case p.Name == "ctx" && m.lastCtx != 0:
			ti.SetValue(strconv.FormatInt(m.lastCtx, 10))
		case p.Name == "doc" && m.lastDoc != 0:
			ti.SetValue(strconv.FormatInt(m.lastDoc, 10))
		case p.Name == "path" && len(m.files) > 0:
			ti.SetValue(m.files[0])
		case p.Name == "index":
			ti.SetValue("0")
		}
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) invoke() tea.Msg {
	c := boundary.Calls[m.selected]
	args := make([]any, len(m.inputs))
	for i, input := range m.inputs {
		v, err := convertArg(input.Value(), c.Params[i].Type)
		if err != nil {
			return callResultMsg{call: c.Name, err: fmt.Errorf("%s: %w", c.Params[i].Name, err)}
		}
		args[i] = v
	}

	v, err := m.host.Invoke(c.Name, args...)
	if err != nil {
		return callResultMsg{call: c.Name, err: fmt.Errorf("%w (status %d)", err, int32(boundary.StatusOf(err)))}
	}
	return callResultMsg{call: c.Name, value: v, result: formatResult(v)}
}

func (m *interactiveModel) loadPages() {
	n, err := m.host.GetPageCount(m.lastDoc)
	if err != nil {
		m.pages.SetRows(nil)
		m.err = err
		return
	}
	rows := make([]table.Row, 0, n)
	for i := int32(0); i < n; i++ {
		size, err := m.host.GetPageSize(m.lastDoc, i)
		if err != nil {
			m.err = err
			break
		}
		rows = append(rows, table.Row{
			strconv.Itoa(int(i) + 1),
			strconv.FormatFloat(size[0], 'g', -1, 64),
			strconv.FormatFloat(size[1], 'g', -1, 64),
			paperName(size[0], size[1]),
		})
	}
	m.pages.SetRows(rows)
	m.pages.SetCursor(0)
}

func convertArg(value string, t wit.Type) (any, error) {
	value = strings.TrimSpace(value)
	switch t.(type) {
	case wit.String:
		return value, nil
	case wit.S32:
		v, err := strconv.ParseInt(value, 10, 32)
		return int32(v), err
	case wit.S64:
		v, err := strconv.ParseInt(value, 10, 64)
		return v, err
	default:
		return nil, fmt.Errorf("unsupported parameter type %s", boundary.TypeString(t))
	}
}

func formatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return "ok"
	case [2]float64:
		return fmt.Sprintf("%g x %g pt", r[0], r[1])
	default:
		return fmt.Sprintf("%v", r)
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("PDF Runtime"))
	b.WriteString(" ")
	b.WriteString(m.host.Runtime().EngineName())
	if m.lastDoc != 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  ctx=%d doc=%d", m.lastCtx, m.lastDoc)))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectCall:
		b.WriteString("Select a call:\n\n")
		for i, c := range boundary.Calls {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.formatCall(c)))
			} else {
				b.WriteString("  " + m.formatCall(c))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		help := "↑/↓ select • enter call • q quit"
		if m.lastDoc != 0 {
			help = "↑/↓ select • enter call • p pages • q quit"
		}
		b.WriteString(helpStyle.Render(help))

	case stateInputArgs:
		c := boundary.Calls[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(c.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(boundary.TypeString(c.Params[i].Type)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		c := boundary.Calls[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(c.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))

	case statePages:
		b.WriteString(fmt.Sprintf("Pages of document %d:\n\n", m.lastDoc))
		b.WriteString(m.pages.View())
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • enter back • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatCall(c boundary.Call) string {
	var params []string
	for _, p := range c.Params {
		params = append(params, p.Name+": "+typeStyle.Render(boundary.TypeString(p.Type)))
	}
	result := ""
	if c.Result != nil {
		result = " -> " + typeStyle.Render(boundary.TypeString(c.Result))
	}
	return funcStyle.Render(c.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(rt *runtime.Runtime, files []string) error {
	p := tea.NewProgram(newInteractiveModel(rt, files), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
