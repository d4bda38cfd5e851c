package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
)

// BubbleCategory is the category name whose detections drive cropping.
const BubbleCategory = "bubble"

// Classes maps detector class ids to category names.
type Classes map[int]string

// LoadClasses reads a JSON object keyed by string-encoded class id.
func LoadClasses(path string) (Classes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfiguration, path, err)
	}
	return ParseClasses(data)
}

func ParseClasses(data []byte) (Classes, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding classes: %v", ErrConfiguration, err)
	}

	classes := make(Classes, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: class id %q is not an integer", ErrConfiguration, k)
		}
		classes[id] = v
	}
	return classes, nil
}

// BubbleID resolves the class id of the bubble category. Exactly one entry
// must match, case-sensitively.
func (c Classes) BubbleID() (int, error) {
	var ids []int
	for id, name := range c {
		if name == BubbleCategory {
			ids = append(ids, id)
		}
	}

	switch len(ids) {
	case 0:
		return 0, fmt.Errorf("%w: %q class not found in classes file", ErrConfiguration, BubbleCategory)
	case 1:
		return ids[0], nil
	default:
		sort.Ints(ids)
		return 0, fmt.Errorf("%w: %q class mapped to several ids %v", ErrConfiguration, BubbleCategory, ids)
	}
}
