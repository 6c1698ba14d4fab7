package preview

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Prev      key.Binding
	Next      key.Binding
	PrevScene key.Binding
	NextScene key.Binding
	Start     key.Binding
	End       key.Binding
	Play      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Prev:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev frame")),
		Next:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next frame")),
		PrevScene: key.NewBinding(key.WithKeys("[", "pgup"), key.WithHelp("[", "prev scene")),
		NextScene: key.NewBinding(key.WithKeys("]", "pgdown"), key.WithHelp("]", "next scene")),
		Start:     key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "start")),
		End:       key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "end")),
		Play:      key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.PrevScene, k.NextScene, k.Play, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.PrevScene, k.NextScene},
		{k.Start, k.End, k.Play, k.Quit},
	}
}
