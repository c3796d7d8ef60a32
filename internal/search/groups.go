package search

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"grimvault/internal/property"
)

// GroupBy selects which derived key buckets search results. Each grouping
// reads one semantically meaningful property rather than the free-form
// entity type.
type GroupBy string

const (
	GroupByNone            GroupBy = ""
	GroupByLevel           GroupBy = "level"
	GroupByChallengeRating GroupBy = "challenge_rating"
	GroupBySubtype         GroupBy = "subtype"
)

func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(s) {
	case GroupByNone, GroupByLevel, GroupByChallengeRating, GroupBySubtype:
		return GroupBy(s), nil
	}
	return GroupByNone, fmt.Errorf("unknown groupBy: %q", s)
}

// Different item kinds store their subtype under different keys; the
// first present wins.
var subtypeKeys = []string{"weapon_type", "armor_type", "tool_type", "consumable_type"}

// propertyKeys lists the property keys the store must fetch to derive
// this grouping.
func (g GroupBy) propertyKeys() []string {
	switch g {
	case GroupByLevel:
		return []string{"level"}
	case GroupByChallengeRating:
		return []string{"challenge_rating"}
	case GroupBySubtype:
		return subtypeKeys
	}
	return nil
}

const (
	unknownGroup = "Unknown"
	otherGroup   = "other"
)

// derivedGroup is one entity's resolved bucket. Rank orders groups in the
// summary; sentinel groups sort last.
type derivedGroup struct {
	key   string
	label string
	rank  float64
}

// deriveGroup resolves the bucket for one entity given the grouped
// property values present on it. Entities missing the property land in a
// sentinel group, never get excluded.
func deriveGroup(g GroupBy, values map[string]property.Value) derivedGroup {
	switch g {
	case GroupByLevel:
		return deriveLevel(values["level"])
	case GroupByChallengeRating:
		return deriveChallengeRating(values["challenge_rating"])
	case GroupBySubtype:
		return deriveSubtype(values)
	}
	return derivedGroup{key: unknownGroup, label: unknownGroup, rank: math.Inf(1)}
}

func deriveLevel(value property.Value) derivedGroup {
	if value.Kind() != property.KindInt {
		return derivedGroup{key: unknownGroup, label: unknownGroup, rank: math.Inf(1)}
	}
	level := value.AsInt()
	return derivedGroup{
		key:   strconv.FormatInt(level, 10),
		label: levelLabel(level),
		rank:  float64(level),
	}
}

func levelLabel(level int64) string {
	if level == 0 {
		return "Cantrip"
	}
	return fmt.Sprintf("%d%s Level", level, ordinalSuffix(level))
}

func ordinalSuffix(n int64) string {
	if n < 0 {
		n = -n
	}
	// 11, 12 and 13 take "th" despite ending in 1, 2, 3.
	if rem := n % 100; rem >= 11 && rem <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// deriveChallengeRating accepts the string tokens game content actually
// uses ("1/8", "0.5", "5") as well as numeric values.
func deriveChallengeRating(value property.Value) derivedGroup {
	rating, ok := parseChallengeRating(value)
	if !ok {
		return derivedGroup{key: unknownGroup, label: unknownGroup, rank: math.Inf(1)}
	}

	var label string
	switch rating {
	case 0.125:
		label = "1/8"
	case 0.25:
		label = "1/4"
	case 0.5:
		label = "1/2"
	default:
		label = fmt.Sprintf("CR %s", strconv.FormatFloat(rating, 'f', -1, 64))
	}
	key := label
	if strings.HasPrefix(label, "CR ") {
		key = strings.TrimPrefix(label, "CR ")
	}
	return derivedGroup{key: key, label: label, rank: rating}
}

func parseChallengeRating(value property.Value) (float64, bool) {
	if rating, ok := value.Numeric(); ok {
		return rating, true
	}
	if value.Kind() != property.KindString {
		return 0, false
	}
	token := strings.TrimSpace(value.AsString())
	if numerator, denominator, found := strings.Cut(token, "/"); found {
		top, err1 := strconv.ParseFloat(strings.TrimSpace(numerator), 64)
		bottom, err2 := strconv.ParseFloat(strings.TrimSpace(denominator), 64)
		if err1 != nil || err2 != nil || bottom == 0 {
			return 0, false
		}
		return top / bottom, true
	}
	rating, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return rating, true
}

func deriveSubtype(values map[string]property.Value) derivedGroup {
	for _, key := range subtypeKeys {
		value, ok := values[key]
		if !ok || value.Kind() != property.KindString {
			continue
		}
		subtype := strings.TrimSpace(value.AsString())
		if subtype == "" {
			continue
		}
		return derivedGroup{key: subtype, label: subtype}
	}
	return derivedGroup{key: otherGroup, label: otherGroup, rank: math.Inf(1)}
}
