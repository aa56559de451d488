package validator

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyCode is returned for a configured code without any values.
	ErrEmptyCode = errors.New("validator: empty code")

	// ErrInvalidCode is returned for a code value that is not a byte.
	ErrInvalidCode = errors.New("validator: invalid code value")

	// ErrDuplicateCode is returned when two users share a code.
	ErrDuplicateCode = errors.New("validator: duplicate code")
)

// Default bounds.
const (
	DefaultMaxLength    = 10
	DefaultTimeoutTicks = 1000
)

// Kind tags a Validation.
type Kind int

const (
	None Kind = iota
	Timeout
	SequenceTooLong
	Validated
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Timeout:
		return "timeout"
	case SequenceTooLong:
		return "sequence_too_long"
	case Validated:
		return "validated"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Validation is the verdict of one Validate call. User is only set for
// Validated.
type Validation struct {
	Kind Kind
	User string
}

// Options bounds the attempt.
type Options struct {
	// MaxLength is the longest sequence still considered in progress.
	MaxLength int
	// TimeoutTicks is the number of calls with a non-empty sequence after
	// which the attempt is discarded.
	TimeoutTicks int
}

// Validator matches sequences against a fixed user table.
//
// The table is read-only after construction; the timeout counter is not
// safe for concurrent use and belongs to the control loop.
type Validator struct {
	users map[string]string // code bytes -> user name
	opts  Options
	ticks int
}

// New builds a Validator from a name -> code table.
func New(users map[string]Sequence, opts Options) (*Validator, error) {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.TimeoutTicks <= 0 {
		opts.TimeoutTicks = DefaultTimeoutTicks
	}

	// Sorted so a duplicate is reported deterministically.
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	table := make(map[string]string, len(users))
	for _, name := range names {
		code := users[name]
		if len(code) == 0 {
			return nil, fmt.Errorf("%w: user %q", ErrEmptyCode, name)
		}
		if other, ok := table[string(code)]; ok {
			return nil, fmt.Errorf("%w: users %q and %q", ErrDuplicateCode, other, name)
		}
		table[string(code)] = name
	}

	return &Validator{users: table, opts: opts}, nil
}

// FromConfig parses the textual codes of the config file and builds a Validator.
func FromConfig(users map[string]string, opts Options) (*Validator, error) {
	parsed := make(map[string]Sequence, len(users))
	for name, text := range users {
		code, err := ParseCode(text)
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", name, err)
		}
		parsed[name] = code
	}
	return New(parsed, opts)
}

// Validate judges the current attempt. Rules, in order:
//  1. a non-empty sequence advances the timeout counter
//  2. longer than MaxLength: cleared, SequenceTooLong
//  3. counter above TimeoutTicks: cleared, Timeout
//  4. exact match: cleared, Validated
//  5. otherwise None and the sequence is left as is
//
// Every verdict except None also resets the counter.
func (v *Validator) Validate(seq *Sequence) Validation {
	if seq.Len() > 0 {
		v.ticks++
	}

	switch {
	case seq.Len() > v.opts.MaxLength:
		v.reset(seq)
		return Validation{Kind: SequenceTooLong}
	case v.ticks > v.opts.TimeoutTicks:
		v.reset(seq)
		return Validation{Kind: Timeout}
	}

	if user, ok := v.users[string(*seq)]; ok {
		v.reset(seq)
		return Validation{Kind: Validated, User: user}
	}
	return Validation{Kind: None}
}

func (v *Validator) reset(seq *Sequence) {
	seq.Clear()
	v.ticks = 0
}

// Ticks returns the timeout counter of the current attempt.
func (v *Validator) Ticks() int {
	return v.ticks
}

// Users returns the number of registered codes.
func (v *Validator) Users() int {
	return len(v.users)
}
