package tui

import (
	"github.com/gdamore/tcell/v2"
)

// namedKeys are the non-rune keys a key map may bind
var namedKeys = map[tcell.Key]string{
	tcell.KeyEnter:     "Enter",
	tcell.KeyTab:       "Tab",
	tcell.KeyBacktab:   "Backtab",
	tcell.KeyUp:        "Up",
	tcell.KeyDown:      "Down",
	tcell.KeyLeft:      "Left",
	tcell.KeyRight:     "Right",
	tcell.KeyHome:      "Home",
	tcell.KeyEnd:       "End",
	tcell.KeyPgUp:      "PgUp",
	tcell.KeyPgDn:      "PgDn",
	tcell.KeyEscape:    "Esc",
	tcell.KeyDelete:    "Delete",
	tcell.KeyBackspace: "Backspace",
}

// keyName spells an event the way key maps name it: the rune itself for
// printable keys, "Ctrl+X" for control keys, tcell's name otherwise.
func keyName(ev *tcell.EventKey) string {
	if ev.Key() == tcell.KeyRune {
		return string(ev.Rune())
	}
	if name, ok := namedKeys[ev.Key()]; ok {
		return name
	}
	if ev.Key() >= tcell.KeyCtrlA && ev.Key() <= tcell.KeyCtrlZ {
		return "Ctrl+" + string(rune('A'+ev.Key()-tcell.KeyCtrlA))
	}
	return ev.Name()
}
