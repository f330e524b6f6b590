package link

import (
	"bufio"
	"io"
	"log"
)

// maxTokenLine bounds one token line on the reverse channel. Longer
// lines are a sign of line noise, not input.
const maxTokenLine = 1024

// TokenLines reads newline-terminated token lines from r and delivers
// them on the returned channel, trailing newline stripped. The channel
// is closed when r ends or fails. This is the reverse channel of the
// serial transport; the device sends one token per line.
func TokenLines(r io.Reader) <-chan string {
	out := make(chan string, tokenBuffer)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, maxTokenLine), maxTokenLine)
		for sc.Scan() {
			out <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			log.Printf("Reverse channel read ended: %v", err)
		}
	}()
	return out
}
