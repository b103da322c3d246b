package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings for the dashboard.
type KeyMap struct {
	Quit       key.Binding
	SwitchPane key.Binding
	Up         key.Binding
	Down       key.Binding
	New        key.Binding
	Open       key.Binding
	Delete     key.Binding
	Dismiss    key.Binding
	SignOut    key.Binding

	// Editor and forms.
	Save         key.Binding
	Close        key.Binding
	NextField    key.Binding
	TogglePublic key.Binding
	Submit       key.Binding

	// Delete confirmation.
	Confirm key.Binding
	Deny    key.Binding
}

func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		SwitchPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss"),
		),
		SignOut: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "sign out"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		TogglePublic: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "toggle public"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "create"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "delete"),
		),
		Deny: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n", "keep"),
		),
	}
}

func (k *KeyMap) ListHelp() []key.Binding {
	return []key.Binding{k.SwitchPane, k.Up, k.New, k.Open, k.Delete, k.Dismiss, k.SignOut, k.Quit}
}

func (k *KeyMap) EditorHelp() []key.Binding {
	return []key.Binding{k.Save, k.NextField, k.Close}
}

func (k *KeyMap) FormHelp() []key.Binding {
	return []key.Binding{k.Submit, k.TogglePublic, k.Close}
}

func (k *KeyMap) ConfirmHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Deny}
}
