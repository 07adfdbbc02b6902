package ranking

import (
	"encoding/json"
	"strings"

	"github.com/aidline/dispatch/core/fault"
	"github.com/aidline/dispatch/core/model"
)

// ParseRankedOutput validates the oracle's raw text against the ranked-list
// contract: optionally fence-wrapped JSON, a non-empty array, every element
// carrying exactly volunteerId, score, distanceKm and reason with the right
// types. Anything else is a KindRankingFormat fault; entries are never
// coerced or dropped.
func ParseRankedOutput(raw string) ([]model.RankedEntry, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fault.New(fault.KindRankingFormat, "oracle returned an empty response")
	}
	trimmed = stripCodeFence(trimmed)

	var items []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return nil, fault.Wrap(fault.KindRankingFormat, err, "oracle output is not a JSON array of objects")
	}
	if len(items) == 0 {
		return nil, fault.New(fault.KindRankingFormat, "oracle returned an empty ranking")
	}

	entries := make([]model.RankedEntry, len(items))
	for i, item := range items {
		var e model.RankedEntry
		if err := field(item, "volunteerId", &e.VolunteerID); err != nil {
			return nil, entryFault(i, err)
		}
		if e.VolunteerID == "" {
			return nil, fault.New(fault.KindRankingFormat, "entry %d: volunteerId is empty", i)
		}
		if err := field(item, "score", &e.Score); err != nil {
			return nil, entryFault(i, err)
		}
		if err := field(item, "distanceKm", &e.DistanceKm); err != nil {
			return nil, entryFault(i, err)
		}
		if err := field(item, "reason", &e.Reason); err != nil {
			return nil, entryFault(i, err)
		}
		entries[i] = e
	}
	return entries, nil
}

func field(item map[string]json.RawMessage, name string, dst any) error {
	raw, ok := item[name]
	if !ok {
		return fault.New(fault.KindRankingFormat, "missing field %q", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fault.Wrap(fault.KindRankingFormat, err, "field %q has the wrong type", name)
	}
	return nil
}

func entryFault(i int, err error) error {
	return fault.Wrap(fault.KindRankingFormat, err, "entry %d", i)
}

// stripCodeFence removes a markdown code fence (``` or ```json) wrapping the
// payload. Oracles backed by chat models wrap their output this way despite
// instructions not to.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
