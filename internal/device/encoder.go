package device

// Encoder decodes a two-channel quadrature rotary encoder. The two
// switch channels A and B produce a Gray-code phase; one detent of
// rotation walks through all four phases, so a full detent is four
// steps of the same sign.
type Encoder struct {
	phase  uint8
	primed bool
}

// forwardNext maps each phase to its successor in the forward
// (clockwise) direction: 00 -> 01 -> 11 -> 10 -> 00.
var forwardNext = [4]uint8{0b00: 0b01, 0b01: 0b11, 0b11: 0b10, 0b10: 0b00}

// Transition feeds the current channel states and returns the step
// delta: +1 for a forward phase advance, -1 for any other phase
// change, 0 when the phase is unchanged. Treating every non-forward
// change as one backward step keeps a bounced or missed phase from
// freezing the decoder.
func (e *Encoder) Transition(a, b bool) int {
	phase := uint8(0)
	if a {
		phase |= 0b10
	}
	if b {
		phase |= 0b01
	}

	if !e.primed {
		e.phase = phase
		e.primed = true
		return 0
	}
	if phase == e.phase {
		return 0
	}

	delta := -1
	if phase == forwardNext[e.phase] {
		delta = 1
	}
	e.phase = phase
	return delta
}
