package frame

import (
	"fmt"
	"strings"
)

// Key tokens are the reverse-direction half of the wire protocol: short
// newline-terminated ASCII lines sent by the device when a button is
// pressed or text is entered.
const (
	lineEnter      = "KEY:ENTER"
	lineBackspace  = "KEY:BACKSPACE"
	lineTextPrefix = "TXT:"
)

// TokenKind identifies one of the closed set of key token types.
type TokenKind int

const (
	TokenEnter TokenKind = iota
	TokenBackspace
	TokenText
)

// Token is one decoded key event from the device. Text is only meaningful
// for TokenText.
type Token struct {
	Kind TokenKind
	Text string
}

// Enter returns the newline token.
func Enter() Token { return Token{Kind: TokenEnter} }

// Backspace returns the erase-previous-character token.
func Backspace() Token { return Token{Kind: TokenBackspace} }

// Text returns a literal-text token carrying s.
func Text(s string) Token { return Token{Kind: TokenText, Text: s} }

// ParseToken classifies one line (without its trailing newline).
// Unknown lines are an error; the relay drops them and keeps going.
func ParseToken(line string) (Token, error) {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case line == lineEnter:
		return Enter(), nil
	case line == lineBackspace:
		return Backspace(), nil
	case strings.HasPrefix(line, lineTextPrefix):
		return Text(line[len(lineTextPrefix):]), nil
	}
	return Token{}, fmt.Errorf("unrecognized key token %q", line)
}

// EncodeToken renders a token as a wire line including the trailing
// newline. Non-ASCII bytes in literal text are dropped here so the line
// stays pure printable ASCII on the wire.
func EncodeToken(t Token) []byte {
	switch t.Kind {
	case TokenEnter:
		return []byte(lineEnter + "\n")
	case TokenBackspace:
		return []byte(lineBackspace + "\n")
	default:
		var b strings.Builder
		b.WriteString(lineTextPrefix)
		for i := 0; i < len(t.Text); i++ {
			if c := t.Text[i]; c >= 0x20 && c <= 0x7E {
				b.WriteByte(c)
			}
		}
		b.WriteString("\n")
		return []byte(b.String())
	}
}
