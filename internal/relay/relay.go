// Package relay turns input tokens from the display device into shell
// input bytes.
package relay

import (
	"io"
	"log"

	"golang.org/x/time/rate"

	"github.com/picoterm/host/internal/frame"
)

// Token rate limit. A wedged device flooding the reverse channel must
// not turn into a runaway stream of keystrokes at the shell; tokens
// over the limit are dropped.
const (
	tokensPerSecond = 200
	tokenBurst      = 64
)

// Relay applies parsed input tokens to a shell's input stream.
type Relay struct {
	w       io.Writer
	limiter *rate.Limiter
}

// New creates a relay writing to w, normally the shell session.
func New(w io.Writer) *Relay {
	return &Relay{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(tokensPerSecond), tokenBurst),
	}
}

// HandleLine parses one token line and applies it. Malformed lines are
// dropped with a log entry; a corrupt serial link must never take the
// session down.
func (r *Relay) HandleLine(line string) {
	t, err := frame.ParseToken(line)
	if err != nil {
		log.Printf("Dropping malformed input token %q: %v", line, err)
		return
	}
	if err := r.Apply(t); err != nil {
		log.Printf("Input token write failed: %v", err)
	}
}

// Apply writes the shell input bytes for one token. ENTER becomes a
// newline, BACKSPACE becomes DEL (0x7F, what terminals send for the
// backspace key), and TXT payloads pass through with non-printable
// bytes removed.
func (r *Relay) Apply(t frame.Token) error {
	if !r.limiter.Allow() {
		log.Printf("Input rate limit exceeded, dropping token")
		return nil
	}

	var p []byte
	switch t.Kind {
	case frame.TokenEnter:
		p = []byte{'\n'}
	case frame.TokenBackspace:
		p = []byte{0x7F}
	case frame.TokenText:
		p = printableBytes(t.Text)
	}
	if len(p) == 0 {
		return nil
	}
	_, err := r.w.Write(p)
	return err
}

// printableBytes keeps only printable ASCII from a TXT payload.
func printableBytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x20 && s[i] <= 0x7E {
			out = append(out, s[i])
		}
	}
	return out
}
