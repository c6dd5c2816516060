// Package keys defines the key bindings of the inline variable editor.
package keys

import "github.com/charmbracelet/bubbles/key"

// EditorKeyMap defines the bindings used while editing a variable inline.
type EditorKeyMap struct {
	// Submit stores the edited value.
	Submit key.Binding
	// NewLine inserts a line break into the value.
	NewLine key.Binding
	// Abort leaves the editor without changing the variable.
	Abort key.Binding
	// External hands the value to $EDITOR.
	External key.Binding
}

// DefaultEditorKeyMap returns the default set of editor bindings.
func DefaultEditorKeyMap() *EditorKeyMap {
	return &EditorKeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter", "ctrl+d"),
			key.WithHelp("enter", "store"),
		),
		NewLine: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "new line"),
		),
		Abort: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "abort"),
		),
		External: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "open $EDITOR"),
		),
	}
}

// ShortHelp returns the bindings shown in the editor's help line.
func (k *EditorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NewLine, k.External, k.Abort}
}
