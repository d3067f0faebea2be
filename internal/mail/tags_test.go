package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedTags([]string{"c", "a", "b", "a", ""}))
	assert.Empty(t, SortedTags(nil))
}

func TestDueDate(t *testing.T) {
	tests := []struct {
		tag  string
		date string
		ok   bool
	}{
		{"due:1970-01-01", "1970-01-01", true},
		{"due:2024-12-31", "2024-12-31", true},
		{"due:2024-1-01", "", false},
		{"Due:2024-01-01", "", false},
		{"due:tomorrow", "", false},
		{"todo", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			date, ok := DueDate(tt.tag)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.date, date)
		})
	}
}

func TestGroupMarkers(t *testing.T) {
	tags := []string{"inbox", "group:b", "group:a", "group:", "Group:c"}
	assert.Equal(t, []string{"group:a", "group:b"}, GroupMarkers(tags))
	assert.False(t, IsGroupMarker("group:"))
}

func TestNewGroupMarker(t *testing.T) {
	a, b := NewGroupMarker(), NewGroupMarker()
	assert.True(t, IsGroupMarker(a))
	assert.Len(t, a, len(GroupPrefix)+12)
	assert.NotEqual(t, a, b)
}

func TestDueTags(t *testing.T) {
	assert.Equal(t, []string{"due:2020-01-01", "due:2021-01-01"},
		DueTags([]string{"todo", "due:2021-01-01", "due:2020-01-01", "due:soon"}))
}
