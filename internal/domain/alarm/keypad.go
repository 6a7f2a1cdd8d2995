package alarm

const (
	// KeySubmit terminates PIN entry and submits the buffered digits.
	KeySubmit = '#'
	// KeyClear discards the buffered digits.
	KeyClear = '*'
)

// pinBuffer accumulates keypad keys until a submit key arrives.
// It has no length bound; an overlong entry simply never matches the PIN.
// Not safe for concurrent use; the owning Machine serializes access.
type pinBuffer struct {
	keys []rune
}

// push appends a key to the buffer.
func (b *pinBuffer) push(k rune) {
	b.keys = append(b.keys, k)
}

// flush returns the buffered entry as a string and empties the buffer.
func (b *pinBuffer) flush() string {
	entered := string(b.keys)
	b.keys = b.keys[:0]

	return entered
}

// reset discards the buffered entry.
func (b *pinBuffer) reset() {
	b.keys = b.keys[:0]
}

// len reports how many keys are buffered.
func (b *pinBuffer) len() int {
	return len(b.keys)
}
