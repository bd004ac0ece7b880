package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"classpeek/internal/bytecode"
	"classpeek/internal/classfile"
)

// Tab indices, same order as the original viewer.
const (
	tabFileInfo = iota
	tabClassInfo
	tabInterfaces
	tabFields
	tabMethods
	tabAttributes
	tabConstantPool
	tabDetail
	tabCount
)

var tabTitles = [tabCount]string{
	"FileInfo", "ClassInfo", "Interfaces", "Fields",
	"Methods", "Attributes", "ConstantPool", "Detail",
}

// ReloadMsg swaps in a freshly parsed classfile (watch mode).
type ReloadMsg struct {
	Class *classfile.ClassFile
}

// ReloadErrMsg reports a failed reload without killing the viewer.
type ReloadErrMsg struct {
	Err error
}

// Model is the tabbed classfile viewer.
type Model struct {
	path     string
	cf       *classfile.ClassFile
	styles   Styles
	active   int
	selected int // method selection, drives the Detail tab
	viewport viewport.Model
	width    int
	height   int
	ready    bool
	status   string
}

// New builds a viewer for an already parsed classfile.
func New(path string, cf *classfile.ClassFile, theme string) Model {
	return Model{
		path:   path,
		cf:     cf,
		styles: NewStyles(theme),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentHeight := msg.Height - 5
		if contentHeight < 1 {
			contentHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, contentHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = contentHeight
		}
		m.viewport.SetContent(m.content())
		return m, nil

	case ReloadMsg:
		m.cf = msg.Class
		if m.selected >= len(m.cf.Methods) {
			m.selected = 0
		}
		m.status = "reloaded"
		m.viewport.SetContent(m.content())
		return m, nil

	case ReloadErrMsg:
		m.status = fmt.Sprintf("reload failed: %v", msg.Err)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab", "right", "l":
			m.active = (m.active + 1) % tabCount
			m.viewport.SetContent(m.content())
			m.viewport.GotoTop()
			return m, nil
		case "shift+tab", "left", "h":
			m.active--
			if m.active < 0 {
				m.active = tabCount - 1
			}
			m.viewport.SetContent(m.content())
			m.viewport.GotoTop()
			return m, nil
		case "up", "k":
			if m.active == tabMethods && m.selected > 0 {
				m.selected--
				m.viewport.SetContent(m.content())
				return m, nil
			}
		case "down", "j":
			if m.active == tabMethods && m.selected < len(m.cf.Methods)-1 {
				m.selected++
				m.viewport.SetContent(m.content())
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var tabs []string
	for i, title := range tabTitles {
		if i == m.active {
			tabs = append(tabs, m.styles.ActiveTab.Render(title))
		} else {
			tabs = append(tabs, m.styles.Tab.Render(title))
		}
	}
	bar := m.styles.TabBar.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))

	content := m.styles.Content.Width(m.width - 2).Render(m.viewport.View())

	status := m.path
	if m.status != "" {
		status += " | " + m.status
	}
	return bar + "\n" + content + "\n" + m.styles.Status.Render(status)
}

// content renders the active tab's text.
func (m Model) content() string {
	cf := m.cf
	switch m.active {
	case tabFileInfo:
		return strings.Join([]string{
			fmt.Sprintf("magic: 0x%08X", uint32(classfile.Magic)),
			"version: " + cf.Version(),
			"source file: " + cf.SourceFileName(),
		}, "\n")

	case tabClassInfo:
		return strings.Join([]string{
			"this class: " + cf.ThisClassName(),
			"super class: " + cf.SuperClassName(),
			"access_flags: " + cf.Flags.ClassString(),
		}, "\n")

	case tabInterfaces:
		names := cf.InterfaceNames()
		if len(names) == 0 {
			return "(none)"
		}
		return strings.Join(names, "\n")

	case tabFields:
		if len(cf.Fields) == 0 {
			return "(none)"
		}
		var lines []string
		for _, f := range cf.Fields {
			lines = append(lines, fmt.Sprintf("%s %s %s",
				f.Flags.FieldString(),
				classfile.FieldType(cf.FieldDescriptor(f)),
				cf.FieldName(f)))
		}
		return strings.Join(lines, "\n")

	case tabMethods:
		if len(cf.Methods) == 0 {
			return "(none)"
		}
		var lines []string
		for i, meth := range cf.Methods {
			line := fmt.Sprintf("%s %s %s",
				meth.Flags.MethodString(),
				cf.MethodName(meth),
				classfile.MethodSignature(cf.MethodDescriptor(meth)))
			if meth.CodeAttr() != nil {
				line += " (code)"
			}
			if i == m.selected {
				line = m.styles.Selected.Render("> " + line)
			} else {
				line = "  " + line
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n")

	case tabAttributes:
		if len(cf.Attributes) == 0 {
			return "(none)"
		}
		var lines []string
		for _, a := range cf.Attributes {
			lines = append(lines, a.String())
		}
		return strings.Join(lines, "\n")

	case tabConstantPool:
		var lines []string
		for i := 1; i < len(cf.ConstPool); i++ {
			lines = append(lines, fmt.Sprintf("#%d: %s", i, cf.ConstPool[i]))
		}
		return strings.Join(lines, "\n")

	case tabDetail:
		if len(cf.Methods) == 0 {
			return "(no methods)"
		}
		meth := cf.Methods[m.selected]
		header := m.styles.Title.Render(cf.MethodName(meth) + " " +
			classfile.MethodSignature(cf.MethodDescriptor(meth)))
		code := meth.CodeAttr()
		if code == nil {
			return header + "\n(no code)"
		}
		body, err := bytecode.Format(code.Code)
		if err != nil {
			return header + "\ndisassembly failed: " + err.Error()
		}
		return fmt.Sprintf("%s\nmax_stack: %d  max_locals: %d\n\n%s",
			header, code.MaxStack, code.MaxLocals, body)
	}
	return ""
}
