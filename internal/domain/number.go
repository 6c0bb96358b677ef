package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NumberKind identifies the entity family a business number belongs to.
type NumberKind string

const (
	KindApplication NumberKind = "APP"
	KindBatch       NumberKind = "BAT"
	KindCard        NumberKind = "CARD"
)

func (k NumberKind) String() string { return string(k) }

func (k NumberKind) IsValid() bool {
	switch k {
	case KindApplication, KindBatch, KindCard:
		return true
	}
	return false
}

func ParseNumberKindFromString(s string) (NumberKind, error) {
	k := NumberKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid number kind %q", ErrValidation, s)
	}
	return k, nil
}

// sequenceWidth is the zero-padded width of the sequence part.
const sequenceWidth = 6

// BusinessNumber is the external identifier of an entity, rendered as
// <KIND>-<year>-<sequence>, e.g. APP-2024-000123. Sequences start at 1
// per (kind, year) bucket and are gapless.
type BusinessNumber struct {
	Kind     NumberKind
	Year     int
	Sequence int64
}

func (n BusinessNumber) String() string {
	return fmt.Sprintf("%s-%04d-%0*d", n.Kind, n.Year, sequenceWidth, n.Sequence)
}

func (n BusinessNumber) IsZero() bool {
	return n.Kind == "" && n.Year == 0 && n.Sequence == 0
}

func (n BusinessNumber) Validate() error {
	if !n.Kind.IsValid() {
		return fmt.Errorf("%w: invalid number kind %q", ErrValidation, n.Kind)
	}
	if n.Year < 2000 || n.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrValidation, n.Year)
	}
	if n.Sequence < 1 {
		return fmt.Errorf("%w: sequence must start at 1, got %d", ErrValidation, n.Sequence)
	}
	return nil
}

// ParseBusinessNumber parses a rendered business number back into its parts.
func ParseBusinessNumber(s string) (BusinessNumber, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return BusinessNumber{}, fmt.Errorf("%w: malformed business number %q", ErrValidation, s)
	}

	kind, err := ParseNumberKindFromString(parts[0])
	if err != nil {
		return BusinessNumber{}, err
	}

	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return BusinessNumber{}, fmt.Errorf("%w: malformed year in %q", ErrValidation, s)
	}

	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return BusinessNumber{}, fmt.Errorf("%w: malformed sequence in %q", ErrValidation, s)
	}

	number := BusinessNumber{Kind: kind, Year: year, Sequence: seq}
	if err := number.Validate(); err != nil {
		return BusinessNumber{}, err
	}
	return number, nil
}
