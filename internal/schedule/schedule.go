// Package schedule extracts hour-of-day preferences from free-text
// availability strings and scores how well a trip's departure time fits them.
package schedule

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Keyword blocks for the common French day-part words. The first keyword
// found wins; a text containing both "matin" and "soir" only yields the
// morning block. Literal hours are still picked up by the digit scan.
var keywordHours = []struct {
	keyword string
	hours   []int
}{
	{"matin", []int{6, 7, 8, 9, 10}},
	{"midi", []int{11, 12, 13, 14}},
	{"soir", []int{17, 18, 19, 20, 21}},
	{"nuit", []int{22, 23, 0, 1, 2}},
}

// hourRe matches "8", "08", "8h", "14h30", "8:15". The leading digit group
// is the hour; trailing minutes are consumed so they do not read as a
// separate hour.
var hourRe = regexp.MustCompile(`(\d{1,2})(?:\s*[h:]\s*\d{0,2})?`)

// ParsePreferences returns the sorted, de-duplicated set of preferred hours
// (0-23) stated in text. Empty input yields an empty set. Out-of-range
// captures are skipped silently.
func ParsePreferences(text string) []int {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	set := make(map[int]struct{})
	for _, kw := range keywordHours {
		if strings.Contains(lower, kw.keyword) {
			for _, h := range kw.hours {
				set[h] = struct{}{}
			}
			break
		}
	}

	for _, m := range hourRe.FindAllStringSubmatch(lower, -1) {
		h, err := strconv.Atoi(m[1])
		if err != nil || h < 0 || h > 23 {
			continue
		}
		set[h] = struct{}{}
	}

	hours := make([]int, 0, len(set))
	for h := range set {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}

// Compatibility score levels.
const (
	ScoreClose   = 1.0 // within 1 hour of a preference
	ScoreNear    = 0.7 // within 2 hours
	ScoreNeutral = 0.5 // nothing to compare
	ScoreFar     = 0.3
)

// CompatibilityScore rates a trip departure time against a user's stated
// schedule. Missing or unparseable input degrades to neutral, never to an
// error.
func CompatibilityScore(userSchedule, tripTime string) float64 {
	if userSchedule == "" || tripTime == "" {
		return ScoreNeutral
	}
	tripHour, ok := FirstHour(tripTime)
	if !ok {
		return ScoreNeutral
	}
	prefs := ParsePreferences(userSchedule)
	if len(prefs) == 0 {
		return ScoreNeutral
	}

	best := ScoreFar
	for _, h := range prefs {
		diff := h - tripHour
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff <= 1:
			return ScoreClose
		case diff <= 2:
			best = ScoreNear
		}
	}
	return best
}

// FirstHour parses the first valid hour mentioned in a departure-time
// string. Out-of-range captures are skipped, not fatal.
func FirstHour(text string) (int, bool) {
	for _, m := range hourRe.FindAllStringSubmatch(strings.ToLower(text), -1) {
		h, err := strconv.Atoi(m[1])
		if err != nil || h < 0 || h > 23 {
			continue
		}
		return h, true
	}
	return 0, false
}
