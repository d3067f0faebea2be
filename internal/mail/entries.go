package mail

// GroupSummaries turns an ordered list of summaries into entries. A summary
// carrying a group marker joins the group keyed by its first marker; the
// group takes the list position of its first member.
func GroupSummaries(summaries []*Summary) []Entry {
	entries := make([]Entry, 0, len(summaries))
	groups := make(map[string]*Group)
	for _, s := range summaries {
		if s == nil {
			continue
		}
		markers := GroupMarkers(s.Tags)
		if len(markers) == 0 {
			entries = append(entries, ConversationEntry(s))
			continue
		}
		marker := markers[0]
		if g, ok := groups[marker]; ok {
			g.Members = append(g.Members, s)
			continue
		}
		g := &Group{Marker: marker, Members: []*Summary{s}}
		groups[marker] = g
		entries = append(entries, GroupEntry(g))
	}
	return entries
}

// FlattenEntries returns every member summary in list order.
func FlattenEntries(entries []Entry) []*Summary {
	var out []*Summary
	for _, e := range entries {
		out = append(out, e.Members()...)
	}
	return out
}
