package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

type confirmModel struct {
	prompt   string
	answered bool
	yes      bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.answered, m.yes = true, true
		return m, tea.Quit
	case "n", "N", "esc", "q", "ctrl+c", "enter":
		m.answered = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.answered {
		return ""
	}
	return titleStyle.Render(m.prompt) + "\n[y] Yes  [n] No\n"
}

// Confirm asks a yes/no question on the terminal. Anything but y is a no.
func Confirm(prompt string, in io.Reader, out io.Writer) (bool, error) {
	final, err := tea.NewProgram(confirmModel{prompt: prompt}, tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return false, err
	}
	return final.(confirmModel).yes, nil
}
