package main

// keymap.go translates raw viewer keystrokes into display actions.
// The viewer stands in for the handheld's physical controls: arrow
// keys take the place of the two rotary encoders, Enter and Backspace
// take the place of the panel buttons.

type actionKind int

const (
	actScrollUp actionKind = iota
	actScrollDown
	actScrollLeft
	actScrollRight
	actEnter
	actBackspace
	actText
	actQuit
)

type keyAction struct {
	kind actionKind
	text string
}

// decodeKeys parses one raw stdin chunk into actions. Arrow keys
// arrive as CSI sequences (ESC [ A..D); printable ASCII becomes TXT
// input; Ctrl+C quits the viewer.
func decodeKeys(buf []byte) []keyAction {
	var actions []keyAction
	for i := 0; i < len(buf); i++ {
		b := buf[i]

		if b == 0x1B && i+2 < len(buf) && buf[i+1] == '[' {
			switch buf[i+2] {
			case 'A':
				actions = append(actions, keyAction{kind: actScrollUp})
			case 'B':
				actions = append(actions, keyAction{kind: actScrollDown})
			case 'C':
				actions = append(actions, keyAction{kind: actScrollRight})
			case 'D':
				actions = append(actions, keyAction{kind: actScrollLeft})
			}
			i += 2
			continue
		}

		switch {
		case b == 0x03:
			actions = append(actions, keyAction{kind: actQuit})
		case b == '\r' || b == '\n':
			actions = append(actions, keyAction{kind: actEnter})
		case b == 0x7F || b == 0x08:
			actions = append(actions, keyAction{kind: actBackspace})
		case b >= 0x20 && b <= 0x7E:
			actions = append(actions, keyAction{kind: actText, text: string(b)})
		}
	}
	return actions
}
