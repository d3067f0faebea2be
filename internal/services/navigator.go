package services

import (
	"context"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/ajramos/tagmail/internal/threading"
	"github.com/rs/zerolog"
)

// Navigator tracks the visible units of the entry list, the active unit and
// the focused view of the active conversation. Groups start collapsed.
type Navigator struct {
	s      *Session
	logger zerolog.Logger

	mode      Mode
	collapsed map[string]bool // group marker -> collapsed

	units  []Unit
	active int // index into units, -1 when empty
	// fromBelow is set when a flat-mode move entered the active unit from
	// its end, so a conversation loaded under it lands on its last message
	fromBelow bool

	focusThread string
	focusAnchor string // transport id of the focused message
	focus       threading.FocusedView
}

func newNavigator(s *Session, mode Mode, logger zerolog.Logger) *Navigator {
	return &Navigator{
		s:         s,
		logger:    logger,
		mode:      mode,
		collapsed: make(map[string]bool),
		active:    -1,
		focus:     threading.FocusedView{AnchorIndex: -1},
	}
}

// Mode returns the current layout mode
func (n *Navigator) Mode() Mode {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	return n.mode
}

// Units returns a snapshot of the visible units
func (n *Navigator) Units() []Unit {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	return append([]Unit(nil), n.units...)
}

// Active returns the active unit and its index
func (n *Navigator) Active() (Unit, int, bool) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	u, ok := n.activeLocked()
	return u, n.active, ok
}

// FocusedView returns the focused view of the active conversation
func (n *Navigator) FocusedView() threading.FocusedView {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	return threading.FocusedView{
		Sequence:    copyMessages(n.focus.Sequence),
		AnchorIndex: n.focus.AnchorIndex,
	}
}

// IsCollapsed reports whether a group is collapsed
func (n *Navigator) IsCollapsed(marker string) bool {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	return n.isCollapsedLocked(marker)
}

// ActivateFirst activates the first visible unit
func (n *Navigator) ActivateFirst() {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	n.moveToLocked(0)
}

// ActivateLast activates the last visible unit. A collapsed group at the
// end of the list is represented by its first member.
func (n *Navigator) ActivateLast() {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	n.moveToLocked(len(n.units) - 1)
	n.fromBelow = n.mode == ModeFlat
}

// StepUp moves the active unit one row up, stopping at the top
func (n *Navigator) StepUp() bool {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if n.active <= 0 {
		return false
	}
	n.moveToLocked(n.active - 1)
	n.fromBelow = n.mode == ModeFlat
	return true
}

// StepDown moves the active unit one row down, stopping at the bottom
func (n *Navigator) StepDown() bool {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if n.active < 0 || n.active >= len(n.units)-1 {
		return false
	}
	n.moveToLocked(n.active + 1)
	return true
}

// StepOutward focuses the parent of the focused message. Focused mode only.
func (n *Navigator) StepOutward() bool {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if n.mode != ModeFocused {
		return false
	}
	return n.refocusOnLocked(n.focus.Parent())
}

// StepInward focuses the child of the focused message along the displayed
// chain. Focused mode only.
func (n *Navigator) StepInward() bool {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if n.mode != ModeFocused {
		return false
	}
	return n.refocusOnLocked(n.focus.Child())
}

// ToggleGroupCollapse flips the collapsed state of a group. When the active
// unit ends up hidden it moves to the group's first member.
func (n *Navigator) ToggleGroupCollapse(ctx context.Context, marker string) bool {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if n.groupLocked(marker) == nil {
		return false
	}
	collapsed := !n.isCollapsedLocked(marker)
	n.collapsed[marker] = collapsed
	if err := n.s.collapse.SetCollapsed(ctx, marker, collapsed); err != nil {
		n.logger.Warn().Err(err).Str("group", marker).Msg("could not persist collapse state")
	}
	n.s.reconcileLocked()
	return true
}

// ToggleFlatFocused switches between flat and focused mode
func (n *Navigator) ToggleFlatFocused() Mode {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if u, ok := n.activeLocked(); ok && u.MessageID != "" {
		n.focusAnchor = u.MessageID
	}
	if n.mode == ModeFocused {
		n.mode = ModeFlat
	} else {
		n.mode = ModeFocused
	}
	n.fromBelow = false
	n.s.reconcileLocked()
	return n.mode
}

func (n *Navigator) activeLocked() (Unit, bool) {
	if n.active < 0 || n.active >= len(n.units) {
		return Unit{}, false
	}
	return n.units[n.active], true
}

func (n *Navigator) isCollapsedLocked(marker string) bool {
	if c, ok := n.collapsed[marker]; ok {
		return c
	}
	return true
}

func (n *Navigator) groupLocked(marker string) *mail.Group {
	for _, e := range n.s.entries {
		if e.IsGroup() && e.Group.Marker == marker {
			return e.Group
		}
	}
	return nil
}

func (n *Navigator) moveToLocked(idx int) {
	n.fromBelow = false
	if len(n.units) == 0 {
		n.active = -1
		n.refocusLocked()
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(n.units) {
		idx = len(n.units) - 1
	}
	n.active = idx
	n.refocusLocked()
}

// rebuildLocked recomputes the visible units and keeps the active unit on
// something visible.
func (n *Navigator) rebuildLocked() {
	prev, hadPrev := n.activeLocked()
	prevIdx := n.active
	n.units = n.computeUnitsLocked()
	switch {
	case len(n.units) == 0:
		n.active = -1
	case !hadPrev:
		n.active = 0
	default:
		n.active = n.locateLocked(prev, prevIdx)
	}
	n.refocusLocked()
}

func (n *Navigator) computeUnitsLocked() []Unit {
	var units []Unit
	for _, e := range n.s.entries {
		switch e.Kind {
		case mail.EntryGroup:
			if e.Group == nil || len(e.Group.Members) == 0 {
				continue
			}
			marker := e.Group.Marker
			if n.isCollapsedLocked(marker) {
				units = n.appendConversationLocked(units, e.Group.First(), marker, true)
				continue
			}
			for _, m := range e.Group.Members {
				units = n.appendConversationLocked(units, m, marker, false)
			}
		default:
			if e.Conversation == nil {
				continue
			}
			units = n.appendConversationLocked(units, e.Conversation, "", false)
		}
	}
	return units
}

func (n *Navigator) appendConversationLocked(units []Unit, sum *mail.Summary, marker string, representative bool) []Unit {
	base := Unit{ThreadID: sum.ThreadID, GroupMarker: marker, Representative: representative}
	msgs := n.s.messages[sum.ThreadID]
	if n.mode != ModeFlat || len(msgs) == 0 {
		return append(units, base)
	}
	for _, m := range msgs {
		u := base
		u.MessageID = m.ID
		u.Depth = m.Depth
		units = append(units, u)
	}
	return units
}

// locateLocked finds where a previously active unit went after a rebuild.
func (n *Navigator) locateLocked(prev Unit, prevIdx int) int {
	want := prev.MessageID
	if want == "" && prev.ThreadID == n.focusThread {
		want = n.focusAnchor
	}

	firstOfThread, lastOfThread := -1, -1
	for i, u := range n.units {
		if u.ThreadID != prev.ThreadID {
			continue
		}
		if u.MessageID == "" {
			return i
		}
		if firstOfThread < 0 {
			firstOfThread = i
		}
		lastOfThread = i
	}
	// a placeholder entered from below was replaced by its messages
	if prev.MessageID == "" && n.fromBelow && n.mode == ModeFlat && lastOfThread >= 0 {
		return lastOfThread
	}
	for i := firstOfThread; i >= 0 && i <= lastOfThread; i++ {
		if n.units[i].ThreadID == prev.ThreadID && n.units[i].MessageID == want {
			return i
		}
	}
	if firstOfThread >= 0 {
		return firstOfThread
	}

	// hidden inside a collapsed group: fall back to the group's row
	marker := prev.GroupMarker
	if sum := n.s.summaryLocked(prev.ThreadID); sum != nil {
		if markers := mail.GroupMarkers(sum.Tags); len(markers) > 0 {
			marker = markers[0]
		}
	}
	if marker != "" {
		for i, u := range n.units {
			if u.GroupMarker == marker {
				return i
			}
		}
	}

	if prevIdx >= len(n.units) {
		return len(n.units) - 1
	}
	if prevIdx < 0 {
		return 0
	}
	return prevIdx
}

// refocusLocked recomputes the focused view for the active conversation.
func (n *Navigator) refocusLocked() {
	u, ok := n.activeLocked()
	if !ok {
		n.focusThread, n.focusAnchor = "", ""
		n.focus = threading.FocusedView{AnchorIndex: -1}
		return
	}
	if u.ThreadID != n.focusThread {
		n.focusThread = u.ThreadID
		n.focusAnchor = ""
	}
	if u.MessageID != "" {
		n.focusAnchor = u.MessageID
	}

	msgs := n.s.messages[u.ThreadID]
	var anchor *mail.Message
	for _, m := range msgs {
		if m.ID == n.focusAnchor {
			anchor = m
			break
		}
	}
	n.focus = threading.ResolveFocusedView(msgs, anchor)
	if a := n.focus.Anchor(); a != nil {
		n.focusAnchor = a.ID
	}
}

func (n *Navigator) refocusOnLocked(target *mail.Message) bool {
	if target == nil {
		return false
	}
	n.focusAnchor = target.ID
	n.focus = threading.ResolveFocusedView(n.s.messages[n.focusThread], target)
	n.logger.Debug().Str("thread", n.focusThread).Str("anchor", target.ID).Int("index", n.focus.AnchorIndex).Msg("focus moved")
	return true
}
