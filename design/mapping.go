package design

import (
	"fmt"
	"math/rand/v2"
)

// Mapping assigns a concrete condition label to every slot.
type Mapping struct {
	labels []string
}

// MapConditions draws one permutation of labels uniformly at random and
// assigns it to slots 0..slots-1 in order. A non-empty localizer label is
// pinned to slot number slots.
func MapConditions(labels []string, slots int, localizer string, rng *rand.Rand) (Mapping, error) {
	if len(labels) != slots {
		return Mapping{}, fmt.Errorf("map conditions: %d labels for %d slots: %w", len(labels), slots, ErrConfigMismatch)
	}

	seen := make(map[string]bool, len(labels)+1)
	for _, l := range labels {
		if l == "" || seen[l] {
			return Mapping{}, fmt.Errorf("map conditions: label %q empty or repeated: %w", l, ErrConfigMismatch)
		}
		seen[l] = true
	}
	if localizer != "" && seen[localizer] {
		return Mapping{}, fmt.Errorf("map conditions: localizer %q is also an experimental label: %w", localizer, ErrConfigMismatch)
	}

	perm := make([]string, len(labels), len(labels)+1)
	copy(perm, labels)
	rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	if localizer != "" {
		perm = append(perm, localizer)
	}
	return Mapping{labels: perm}, nil
}

// Label returns the label for slot and whether the slot is mapped.
func (m Mapping) Label(slot Slot) (string, bool) {
	if slot < 0 || int(slot) >= len(m.labels) {
		return "", false
	}
	return m.labels[slot], true
}

// Len is the number of mapped slots.
func (m Mapping) Len() int { return len(m.labels) }

// Labels returns the labels in slot order.
func (m Mapping) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}
