package views

import (
	"fmt"
	"strings"

	"github.com/buemura/scanward/internal/tui/styles"
	tea "github.com/charmbracelet/bubbletea"
)

// ScanTypeItem is one selectable scan profile.
type ScanTypeItem struct {
	Name        string
	Description string
}

// MenuModel is the view model for the scan type menu.
type MenuModel struct {
	items  []ScanTypeItem
	cursor int
}

// NewMenuModel creates a menu with the given items.
func NewMenuModel(items []ScanTypeItem) MenuModel {
	return MenuModel{items: items}
}

// Init returns nil (no initial command).
func (m MenuModel) Init() tea.Cmd {
	return nil
}

// Update handles key navigation in the menu.
func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "q":
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the menu.
func (m MenuModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(appTitle))
	b.WriteString("\n\n")
	b.WriteString(styles.HeaderStyle.Render("Select a scan type:"))
	b.WriteString("\n")

	for i, item := range m.items {
		cursor := "  "
		nameStyle := styles.HelpStyle
		if i == m.cursor {
			cursor = styles.CursorStyle.Render("> ")
			nameStyle = styles.SelectedStyle
		}

		b.WriteString(fmt.Sprintf("%s%s  %s\n",
			cursor,
			nameStyle.Render(fmt.Sprintf("%-6s", item.Name)),
			styles.HelpStyle.Render(item.Description),
		))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("↑/↓ navigate • enter select • q quit"))

	return b.String()
}

// Selected returns the highlighted item, or nil if the menu is empty.
func (m MenuModel) Selected() *ScanTypeItem {
	if len(m.items) == 0 {
		return nil
	}
	return &m.items[m.cursor]
}

func (m MenuModel) Cursor() int {
	return m.cursor
}

func (m MenuModel) Items() []ScanTypeItem {
	return m.items
}
