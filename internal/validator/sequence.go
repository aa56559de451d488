package validator

import (
	"fmt"
	"strconv"
	"strings"
)

// Sequence is the ordered list of raw keypad bytes of one unlock attempt.
type Sequence []uint8

// Append records one keypad byte.
func (s *Sequence) Append(code uint8) {
	*s = append(*s, code)
}

// Clear discards the attempt, keeping the backing array.
func (s *Sequence) Clear() {
	*s = (*s)[:0]
}

// Len returns the number of recorded bytes.
func (s Sequence) Len() int {
	return len(s)
}

// Equal reports whether both sequences hold the same bytes in the same order.
func (s Sequence) Equal(other Sequence) bool {
	return string(s) == string(other)
}

// String formats the sequence the way codes are written in the config,
// e.g. "[14, 15, 13, 15]".
func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, b := range s {
		parts[i] = strconv.Itoa(int(b))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseCode parses a code written as a list of byte values. Brackets,
// parentheses, commas and whitespace are accepted as separators.
func ParseCode(text string) (Sequence, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '[', ']', '(', ')', ',', ' ', '\t', '\n', '\r':
			return true
		}
		return false
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyCode, text)
	}

	seq := make(Sequence, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseUint(f, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q in %q", ErrInvalidCode, f, text)
		}
		seq = append(seq, uint8(n))
	}
	return seq, nil
}
