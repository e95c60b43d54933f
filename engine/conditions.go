package engine

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ClementAbb/uniformity-illusion/design"
)

// LoadConditions reads a condition table with the columns
// label, image, duration_ms, flags. Flags is a '|' separated list of
// fade_in, fade_out, flicker and response. Lines starting with '#' are
// ignored.
func LoadConditions(path string) ([]design.Condition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var conditions []design.Condition
	for i, record := range records {
		if len(record) < 3 {
			return nil, fmt.Errorf("line %d: want at least 3 fields, got %d", i+1, len(record))
		}

		ms, err := strconv.ParseUint(strings.TrimSpace(record[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid duration: %v", i+1, err)
		}

		c := design.Condition{
			Label:    strings.TrimSpace(record[0]),
			Image:    strings.TrimSpace(record[1]),
			Duration: time.Duration(ms) * time.Millisecond,
		}
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			for _, flag := range strings.Split(record[3], "|") {
				switch strings.ToLower(strings.TrimSpace(flag)) {
				case "fade_in":
					c.FadeIn = true
				case "fade_out":
					c.FadeOut = true
				case "flicker":
					c.Flicker = true
				case "response":
					c.Response = true
				default:
					return nil, fmt.Errorf("line %d: unknown flag: %s", i+1, flag)
				}
			}
		}
		conditions = append(conditions, c)
	}

	return conditions, nil
}

// MergeConditions replaces the conditions in base whose label appears in
// override and keeps the others.
func MergeConditions(base, override []design.Condition) []design.Condition {
	byLabel := make(map[string]design.Condition, len(override))
	for _, c := range override {
		byLabel[c.Label] = c
	}
	out := make([]design.Condition, 0, len(base))
	for _, c := range base {
		if o, ok := byLabel[c.Label]; ok {
			c = o
		}
		out = append(out, c)
	}
	return out
}
