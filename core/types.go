package core

import (
	"fmt"
	"strings"
)

const (
	// MaxPasswordLen bounds every candidate the search will build.
	MaxPasswordLen = 100
	// MaxSeedLen is the longest seed accepted; the buffer leaves room for one insertion per seed character.
	MaxSeedLen = MaxPasswordLen / 2
	// BufferCapacity is the number of characters a mutation buffer can hold.
	BufferCapacity = 2 * MaxPasswordLen
)

// Printable ASCII bounds used for substituted and inserted characters.
const (
	FirstPrintable byte = 0x20
	LastPrintable  byte = 0x7E
)

// Budget is one composition of an edit distance into operation counts.
type Budget struct {
	Substitutions  int `json:"substitutions" yaml:"substitutions"`
	Transpositions int `json:"transpositions" yaml:"transpositions"`
	Insertions     int `json:"insertions" yaml:"insertions"`
	Deletions      int `json:"deletions" yaml:"deletions"`
}

// Distance returns the total number of edits in the budget.
func (b Budget) Distance() int {
	return b.Substitutions + b.Transpositions + b.Insertions + b.Deletions
}

// Validate rejects negative operation counts.
func (b Budget) Validate() error {
	if b.Substitutions < 0 || b.Transpositions < 0 || b.Insertions < 0 || b.Deletions < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBudget, b)
	}
	return nil
}

func (b Budget) String() string {
	return fmt.Sprintf("(subs %d, trans %d, ins %d, dels %d)",
		b.Substitutions, b.Transpositions, b.Insertions, b.Deletions)
}

// CharRange is the closed interval of characters tried at substituted and inserted positions.
// A Step greater than one skips characters and makes the search incomplete.
type CharRange struct {
	Lo   byte `yaml:"lo"`
	Hi   byte `yaml:"hi"`
	Step int  `yaml:"step"`
}

// PrintableASCII is the full space-through-tilde range with step 1.
func PrintableASCII() CharRange {
	return CharRange{Lo: FirstPrintable, Hi: LastPrintable, Step: 1}
}

// WithStep returns a copy of r iterated with the given step.
func (r CharRange) WithStep(step int) CharRange {
	r.Step = step
	return r
}

// Validate checks that the range is non-empty and the step is positive.
func (r CharRange) Validate() error {
	if r.Lo > r.Hi {
		return fmt.Errorf("%w: lo %#x above hi %#x", ErrInvalidCharRange, r.Lo, r.Hi)
	}
	if r.Step < 1 {
		return fmt.Errorf("%w: step %d", ErrInvalidCharRange, r.Step)
	}
	return nil
}

// Complete reports whether every character of the range is visited.
func (r CharRange) Complete() bool { return r.Step == 1 }

// Size is the number of characters visited per position.
func (r CharRange) Size() int {
	return (int(r.Hi)-int(r.Lo))/r.Step + 1
}

// Next returns the character after c and false when the range wraps.
func (r CharRange) Next(c byte) (byte, bool) {
	n := int(c) + r.Step
	if n > int(r.Hi) {
		return r.Lo, false
	}
	return byte(n), true
}

// Outcome is the result of a search or of a single composition.
type Outcome struct {
	Found    bool
	Password string
	Distance int
	Budget   Budget
}

// NotFound is the outcome when the search space was exhausted.
var NotFound = Outcome{}

// Found builds a positive outcome for the given candidate and composition.
func Found(password string, b Budget) Outcome {
	return Outcome{Found: true, Password: password, Distance: b.Distance(), Budget: b}
}

// NotFoundMarker is printed in place of a password when none matched.
const NotFoundMarker = "NOT_FOUND"

func (o Outcome) String() string {
	if !o.Found {
		return NotFoundMarker
	}
	return o.Password
}

// ValidateSeed enforces the seed length bound and the printable character set.
func ValidateSeed(seed string) error {
	if len(seed) > MaxSeedLen {
		return fmt.Errorf("%w: %d characters, limit is %d", ErrSeedTooLong, len(seed), MaxSeedLen)
	}
	if i := strings.IndexFunc(seed, func(r rune) bool {
		return r < rune(FirstPrintable) || r > rune(LastPrintable)
	}); i >= 0 {
		return fmt.Errorf("%w: non-printable character at offset %d", ErrInvalidSeed, i)
	}
	return nil
}
