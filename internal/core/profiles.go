package core

import (
	"fmt"
	"strings"
)

// Profile defines which data kinds to fetch for a ticker.
type Profile struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Kinds       []DataKind `json:"kinds"`
}

// BuiltInProfiles provides default profiles bundled with tickerlens.
var BuiltInProfiles = []Profile{
	{
		Name:        "full",
		Description: "Price, earnings and news sentiment",
		Kinds:       []DataKind{KindQuote, KindEarnings, KindSentiment},
	},
	{
		Name:        "prices",
		Description: "Latest quote only",
		Kinds:       []DataKind{KindQuote},
	},
	{
		Name:        "fundamentals",
		Description: "Quote plus earnings calendar",
		Kinds:       []DataKind{KindQuote, KindEarnings},
	},
}

// LookupProfile returns the built-in profile with the given name.
func LookupProfile(name string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, profile := range BuiltInProfiles {
		if profile.Name == key {
			return profile, nil
		}
	}
	return Profile{}, fmt.Errorf("unknown profile: %s", name)
}

// ParseKinds converts a list of kind names into data kinds.
func ParseKinds(values []string) ([]DataKind, error) {
	kinds := make([]DataKind, 0, len(values))
	seen := map[DataKind]bool{}
	for _, value := range values {
		kind := DataKind(strings.ToLower(strings.TrimSpace(value)))
		if kind == "" {
			continue
		}
		switch kind {
		case KindQuote, KindEarnings, KindSentiment:
		default:
			return nil, fmt.Errorf("unknown data kind: %s", value)
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
