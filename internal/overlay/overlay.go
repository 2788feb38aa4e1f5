// Package overlay classifies search hits into real (primary) and
// synthetic (secondary) entities and applies the slot-filling policy.
//
// Classification is a pure function of the id string: anything that
// starts with the reserved marker prefix is synthetic filler used to
// inflate the dataset for load tests. Real id generation must never
// produce ids with that prefix.
package overlay

import (
	"strings"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
)

// DefaultMarker prefixes synthetic entity ids.
const DefaultMarker = "ghost:"

type Class int

const (
	Primary Class = iota
	Secondary
)

func (c Class) String() string {
	if c == Secondary {
		return "secondary"
	}
	return "primary"
}

type Classifier struct {
	marker string
}

func NewClassifier(marker string) Classifier {
	if marker == "" {
		marker = DefaultMarker
	}
	return Classifier{marker: marker}
}

func (c Classifier) Marker() string { return c.marker }

func (c Classifier) Classify(id string) Class {
	if strings.HasPrefix(id, c.marker) {
		return Secondary
	}
	return Primary
}

// PartitionAndFill caps matches at desiredCount. With preferPrimary,
// primary entries take slots first, then secondary entries fill the
// remainder; relative distance order is preserved within each class.
// Without preferPrimary the distance-ordered input is truncated as is.
func (c Classifier) PartitionAndFill(matches []model.Match, desiredCount int, preferPrimary bool) []model.Match {
	if desiredCount <= 0 {
		return nil
	}
	if !preferPrimary {
		if len(matches) > desiredCount {
			matches = matches[:desiredCount]
		}
		return append([]model.Match(nil), matches...)
	}

	out := make([]model.Match, 0, desiredCount)
	for _, m := range matches {
		if c.Classify(m.ID) == Primary {
			out = append(out, m)
			if len(out) == desiredCount {
				return out
			}
		}
	}
	for _, m := range matches {
		if c.Classify(m.ID) == Secondary {
			out = append(out, m)
			if len(out) == desiredCount {
				break
			}
		}
	}
	return out
}
