package scoring

import (
	"strings"

	"github.com/kindred-app/kindred/internal/store"
)

// ContextFilter is a requested situational filter. Empty fields are
// wildcards; a fully empty filter matches everything.
type ContextFilter struct {
	Location  string `json:"location,omitempty"`
	Energy    string `json:"energy,omitempty"`
	TimeOfDay string `json:"time_of_day,omitempty"`
}

// Empty reports whether no filter fields are set.
func (f ContextFilter) Empty() bool {
	return f.Location == "" && f.Energy == "" && f.TimeOfDay == ""
}

// MatchesContext reports whether any of the activity's context tags satisfies
// every non-empty filter field. An activity with zero tags never matches a
// non-empty filter.
//
// A field matches when the tag's structured attribute equals the requested
// value, or the tag's free-text name contains it as a substring. The name
// fallback exists because early data was tagged by name only; both paths are
// kept.
func MatchesContext(tags []*store.ActivityContext, f ContextFilter) bool {
	if f.Empty() {
		return true
	}
	for _, tag := range tags {
		if tagMatches(tag, f) {
			return true
		}
	}
	return false
}

func tagMatches(tag *store.ActivityContext, f ContextFilter) bool {
	if f.Location != "" && !fieldMatches(tag.Location, tag.Name, f.Location) {
		return false
	}
	if f.Energy != "" && !fieldMatches(tag.Energy, tag.Name, f.Energy) {
		return false
	}
	if f.TimeOfDay != "" && !fieldMatches(tag.TimeOfDay, tag.Name, f.TimeOfDay) {
		return false
	}
	return true
}

func fieldMatches(attr, name, requested string) bool {
	if attr != "" && strings.EqualFold(attr, requested) {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(requested))
}
