package design

import (
	"errors"
	"fmt"
)

// ErrConfigMismatch reports a planning configuration that cannot produce a
// valid run. It is always fatal and surfaces before the run clock starts.
var ErrConfigMismatch = errors.New("configuration mismatch")

// Slot is an abstract condition id. Experimental slots are 0..c-1; when a
// localizer is used it takes slot c.
type Slot int

// Sequence is a counterbalanced ordering of slots.
type Sequence []Slot

// balanced holds hand-checked orderings. Each row contains every slot once
// and, across rows, ordered pairs of distinct slots occur as evenly as the
// row count allows.
var balanced = map[int][][]Slot{
	3: {
		{0, 1, 2},
		{1, 2, 0},
		{2, 0, 1},
		{2, 1, 0},
		{0, 2, 1},
		{1, 0, 2},
	},
	// every transition occurs once except 3->0
	5: {
		{0, 1, 2, 3, 4},
		{3, 2, 1, 0, 4},
		{0, 2, 4, 1, 3},
		{1, 4, 2, 0, 3},
	},
}

// PlanSequence builds the order of c condition slots repeated R times.
//
// When localizer is true every block of c experimental trials is followed
// by the localizer slot (id c), which does not take part in counterbalancing.
// The result contains no randomness.
func PlanSequence(c, repeats int, localizer bool) (Sequence, error) {
	if c <= 0 || repeats <= 0 {
		return nil, fmt.Errorf("plan sequence: %d slots x %d repeats: %w", c, repeats, ErrConfigMismatch)
	}

	rows := latinRows(c, repeats)

	n := c * repeats
	if localizer {
		n += repeats
	}
	seq := make(Sequence, 0, n)
	for _, row := range rows {
		seq = append(seq, row...)
		if localizer {
			seq = append(seq, Slot(c))
		}
	}

	if err := seq.validate(c, repeats, localizer); err != nil {
		return nil, fmt.Errorf("plan sequence: %w", err)
	}
	return seq, nil
}

// latinRows returns repeats rows, each a permutation of 0..c-1.
func latinRows(c, repeats int) [][]Slot {
	rows := make([][]Slot, 0, repeats)
	if table, ok := balanced[c]; ok && repeats%len(table) == 0 {
		for len(rows) < repeats {
			rows = append(rows, table...)
		}
		return rows
	}

	// rows of a cyclic latin square, row i rotated by i
	for i := 0; i < repeats; i++ {
		row := make([]Slot, c)
		for j := range row {
			row[j] = Slot((i + j) % c)
		}
		rows = append(rows, row)
	}
	return rows
}

func (s Sequence) validate(c, repeats int, localizer bool) error {
	counts := s.Counts()
	for slot := 0; slot < c; slot++ {
		if counts[Slot(slot)] != repeats {
			return fmt.Errorf("slot %d occurs %d times, want %d: %w", slot, counts[Slot(slot)], repeats, ErrConfigMismatch)
		}
	}
	if localizer && counts[Slot(c)] != repeats {
		return fmt.Errorf("localizer occurs %d times, want %d: %w", counts[Slot(c)], repeats, ErrConfigMismatch)
	}
	return nil
}

// Counts returns how often each slot occurs.
func (s Sequence) Counts() map[Slot]int {
	counts := make(map[Slot]int)
	for _, slot := range s {
		counts[slot]++
	}
	return counts
}

// Transitions counts ordered pairs (a, b) of consecutive distinct slots.
func (s Sequence) Transitions() map[[2]Slot]int {
	pairs := make(map[[2]Slot]int)
	for i := 1; i < len(s); i++ {
		if s[i-1] != s[i] {
			pairs[[2]Slot{s[i-1], s[i]}]++
		}
	}
	return pairs
}
