package mail

import (
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Reserved tag vocabulary. These are literal, case-sensitive tokens shared
// with the backends.
const (
	TagUnread   = "unread"
	TagDeleted  = "deleted"
	TagTodo     = "todo"
	DuePrefix   = "due:"
	GroupPrefix = "group:"
)

var dueTagPattern = regexp.MustCompile(`^due:(\d{4}-\d{2}-\d{2})$`)

// HasTag reports whether tags contains tag.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SortedTags returns a sorted, de-duplicated copy of tags for display.
func SortedTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// IsGroupMarker reports whether tag encodes group membership.
func IsGroupMarker(tag string) bool {
	return strings.HasPrefix(tag, GroupPrefix) && len(tag) > len(GroupPrefix)
}

// GroupMarkers returns the sorted group markers among tags.
func GroupMarkers(tags []string) []string {
	var out []string
	for _, t := range SortedTags(tags) {
		if IsGroupMarker(t) {
			out = append(out, t)
		}
	}
	return out
}

// NewGroupMarker returns a fresh, unique group marker tag.
func NewGroupMarker() string {
	return GroupPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// DueDate extracts the ISO date of a due tag.
func DueDate(tag string) (string, bool) {
	m := dueTagPattern.FindStringSubmatch(tag)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsDueTag reports whether tag is a well-formed due-date marker.
func IsDueTag(tag string) bool {
	_, ok := DueDate(tag)
	return ok
}

// DueTags returns the sorted due-date markers among tags.
func DueTags(tags []string) []string {
	var out []string
	for _, t := range SortedTags(tags) {
		if IsDueTag(t) {
			out = append(out, t)
		}
	}
	return out
}
