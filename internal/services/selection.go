package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/rs/zerolog"
)

const (
	deleteExpression = mail.TagDeleted + " -" + mail.TagUnread
)

// Editor owns the selection set and turns user intent into batched tag
// mutations against the backend. Successful mutations are mirrored into
// the session so the list reflects them without a re-fetch.
type Editor struct {
	s        *Session
	undo     UndoService
	logger   zerolog.Logger
	selected map[string]struct{}
}

func newEditor(s *Session, undo UndoService, logger zerolog.Logger) *Editor {
	return &Editor{
		s:        s,
		undo:     undo,
		logger:   logger,
		selected: make(map[string]struct{}),
	}
}

// ToggleSelect adds or removes id from the selection. Only ids of visible
// units are accepted; the active unit is not touched.
func (e *Editor) ToggleSelect(id string) bool {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.toggleLocked(id)
}

// ToggleSelectActive toggles the selection of the active unit
func (e *Editor) ToggleSelectActive() (string, bool) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	u, ok := e.s.nav.activeLocked()
	if !ok {
		return "", false
	}
	id := u.SelectionID()
	return id, e.toggleLocked(id)
}

// IsSelected reports whether id is in the selection
func (e *Editor) IsSelected(id string) bool {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	_, ok := e.selected[id]
	return ok
}

// Selected returns the selection in list order
func (e *Editor) Selected() []string {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	var out []string
	seen := make(map[string]struct{})
	for _, u := range e.s.nav.units {
		for _, id := range []string{u.SelectionID(), u.ThreadID} {
			if _, ok := e.selected[id]; !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	if len(out) == len(e.selected) {
		return out
	}
	for _, sum := range mail.FlattenEntries(e.s.entries) {
		if _, ok := e.selected[sum.ThreadID]; !ok {
			continue
		}
		if _, dup := seen[sum.ThreadID]; !dup {
			seen[sum.ThreadID] = struct{}{}
			out = append(out, sum.ThreadID)
		}
	}
	return out
}

// ClearSelection empties the selection
func (e *Editor) ClearSelection() {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.selected = make(map[string]struct{})
}

// EffectiveTargets returns the conversations a bulk operation acts on: the
// selection when it is non-empty, the active unit otherwise. Group markers
// expand to their members.
func (e *Editor) EffectiveTargets() []string {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.effectiveTargetsLocked()
}

// ApplyTagEdit applies expr to every target in one batched request
func (e *Editor) ApplyTagEdit(ctx context.Context, targets []string, expr string) error {
	edit, err := mail.ParseTagEdit(expr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.applyLocked(ctx, targets, edit, UndoActionTagEdit)
}

// Delete marks the targets deleted and read
func (e *Editor) Delete(ctx context.Context, targets []string) error {
	edit, _ := mail.ParseTagEdit(deleteExpression)
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.applyLocked(ctx, targets, edit, UndoActionDelete)
}

// RenameTag replaces from with to on the targets. With no targets every
// loaded conversation carrying from is renamed.
func (e *Editor) RenameTag(ctx context.Context, targets []string, from, to string) error {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" || strings.ContainsAny(from+to, " \t") {
		return fmt.Errorf("invalid tag rename %q -> %q: %w", from, to, ErrInvalidInput)
	}
	if from == to {
		return nil
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if len(targets) == 0 {
		for id := range e.s.membersWithTagLocked(from) {
			targets = append(targets, id)
		}
	}
	edit := mail.TagEdit{Add: []string{to}, Remove: []string{from}}
	return e.applyLocked(ctx, targets, edit, UndoActionTagEdit)
}

// Group toggles grouping of the targets. When they form exactly one
// existing group the group is dissolved. Otherwise every group marker they
// carry is stripped, one request per marker, and a freshly allocated
// marker is applied to all of them. The new marker is returned.
func (e *Editor) Group(ctx context.Context, targets []string) (string, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	ids := e.expandLocked(targets)
	if len(ids) == 0 {
		return "", nil
	}
	if e.s.backend == nil {
		return "", fmt.Errorf("backend not initialized")
	}

	carriers := make(map[string][]string)
	for _, id := range ids {
		for _, m := range mail.GroupMarkers(e.s.summaryLocked(id).Tags) {
			carriers[m] = append(carriers[m], id)
		}
	}
	markers := make([]string, 0, len(carriers))
	for m := range carriers {
		markers = append(markers, m)
	}
	sort.Strings(markers)

	if len(markers) == 1 && e.coversExactlyLocked(markers[0], ids, carriers[markers[0]]) {
		marker := markers[0]
		changes, err := e.editLocked(ctx, ids, mail.TagEdit{Remove: []string{marker}})
		if err != nil {
			return "", err
		}
		e.finishLocked(ctx, UndoActionGroup, fmt.Sprintf("ungrouped %d conversations", len(ids)), changes)
		return "", nil
	}

	all := make(map[string]mail.TagEdit)
	for _, marker := range markers {
		changes, err := e.editLocked(ctx, carriers[marker], mail.TagEdit{Remove: []string{marker}})
		if err != nil {
			e.abortLocked(ctx, UndoActionGroup, "partially regrouped conversations", all)
			return "", err
		}
		mergeChanges(all, changes)
	}

	var marker string
	err := e.send(func() error {
		var err error
		marker, err = e.s.backend.AllocateGroup(ctx, ids)
		return err
	})
	if err == nil && !mail.IsGroupMarker(marker) {
		err = fmt.Errorf("backend allocated invalid group marker %q: %w", marker, ErrInvalidInput)
	}
	if err != nil {
		e.abortLocked(ctx, UndoActionGroup, "partially regrouped conversations", all)
		return "", fmt.Errorf("failed to allocate group: %w", err)
	}
	mergeChanges(all, e.s.mirrorLocked(ids, mail.TagEdit{Add: []string{marker}}))
	e.logger.Info().Str("group", marker).Int("members", len(ids)).Int("stripped", len(markers)).Msg("group created")
	e.finishLocked(ctx, UndoActionGroup, fmt.Sprintf("grouped %d conversations", len(ids)), all)
	return marker, nil
}

// MarkDone removes the todo tag and every due tag from the targets.
// Targets needing the same removal share one request; requests go out in
// the order their first target appears.
func (e *Editor) MarkDone(ctx context.Context, targets []string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	ids := e.expandLocked(targets)
	if len(ids) == 0 {
		return nil
	}

	type batch struct {
		edit mail.TagEdit
		ids  []string
	}
	var batches []*batch
	byExpr := make(map[string]*batch)
	for _, id := range ids {
		sum := e.s.summaryLocked(id)
		var edit mail.TagEdit
		if sum.HasTag(mail.TagTodo) {
			edit.Remove = append(edit.Remove, mail.TagTodo)
		}
		edit.Remove = append(edit.Remove, mail.DueTags(sum.Tags)...)
		if edit.IsEmpty() {
			continue
		}
		key := edit.String()
		b, ok := byExpr[key]
		if !ok {
			b = &batch{edit: edit}
			byExpr[key] = b
			batches = append(batches, b)
		}
		b.ids = append(b.ids, id)
	}

	all := make(map[string]mail.TagEdit)
	for _, b := range batches {
		changes, err := e.editLocked(ctx, b.ids, b.edit)
		if err != nil {
			e.abortLocked(ctx, UndoActionDone, "partially marked done", all)
			return err
		}
		mergeChanges(all, changes)
	}
	e.finishLocked(ctx, UndoActionDone, fmt.Sprintf("marked %d conversations done", len(ids)), all)
	return nil
}

// Undo reverts the last recorded mutation
func (e *Editor) Undo(ctx context.Context) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	action := e.undo.LastAction()
	if action == nil || len(action.Changes) == 0 {
		return ErrNothingToUndo
	}

	threads := make([]string, 0, len(action.Changes))
	for id := range action.Changes {
		threads = append(threads, id)
	}
	sort.Strings(threads)

	var order []string
	batches := make(map[string][]string)
	edits := make(map[string]mail.TagEdit)
	for _, id := range threads {
		inv := action.Changes[id].Inverse()
		if inv.IsEmpty() {
			continue
		}
		key := inv.String()
		if _, ok := batches[key]; !ok {
			order = append(order, key)
			edits[key] = inv
		}
		batches[key] = append(batches[key], id)
	}
	for _, key := range order {
		if _, err := e.editLocked(ctx, batches[key], edits[key]); err != nil {
			e.s.rederiveLocked()
			return fmt.Errorf("failed to undo %s: %w", action.Description, err)
		}
	}
	e.undo.Clear()
	e.logger.Info().Str("action", action.ID).Str("type", string(action.Type)).Msg("action undone")
	e.s.rederiveLocked()
	return nil
}

func (e *Editor) toggleLocked(id string) bool {
	if !e.visibleLocked(id) {
		return false
	}
	if _, ok := e.selected[id]; ok {
		delete(e.selected, id)
	} else {
		e.selected[id] = struct{}{}
	}
	return true
}

func (e *Editor) visibleLocked(id string) bool {
	if id == "" {
		return false
	}
	for _, u := range e.s.nav.units {
		if u.ThreadID == id || u.SelectionID() == id {
			return true
		}
	}
	return false
}

// pruneLocked drops selected ids that no longer match a visible unit.
// Members of a collapsed group stay selected while the group's row is
// visible.
func (e *Editor) pruneLocked() {
	var members map[string]struct{}
	for id := range e.selected {
		if e.visibleLocked(id) {
			continue
		}
		if members == nil {
			members = e.collapsedMembersLocked()
		}
		if _, ok := members[id]; !ok {
			delete(e.selected, id)
		}
	}
}

// collapsedMembersLocked returns the conversations hidden behind a visible
// collapsed group row.
func (e *Editor) collapsedMembersLocked() map[string]struct{} {
	out := make(map[string]struct{})
	for _, u := range e.s.nav.units {
		if !u.Representative {
			continue
		}
		for thread := range e.s.membersWithTagLocked(u.GroupMarker) {
			out[thread] = struct{}{}
		}
	}
	return out
}

func (e *Editor) effectiveTargetsLocked() []string {
	if len(e.selected) > 0 {
		ids := make([]string, 0, len(e.selected))
		for id := range e.selected {
			ids = append(ids, id)
		}
		return e.expandLocked(ids)
	}
	u, ok := e.s.nav.activeLocked()
	if !ok {
		return nil
	}
	return e.expandLocked([]string{u.SelectionID()})
}

// expandLocked resolves group markers to their members and returns the
// known conversations among ids, deduplicated, in list order.
func (e *Editor) expandLocked(ids []string) []string {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if mail.IsGroupMarker(id) {
			for thread := range e.s.membersWithTagLocked(id) {
				want[thread] = struct{}{}
			}
			continue
		}
		want[id] = struct{}{}
	}
	var out []string
	for _, sum := range mail.FlattenEntries(e.s.entries) {
		if _, ok := want[sum.ThreadID]; ok {
			out = append(out, sum.ThreadID)
			delete(want, sum.ThreadID)
		}
	}
	return out
}

func (e *Editor) coversExactlyLocked(marker string, ids, carriers []string) bool {
	if len(carriers) != len(ids) {
		return false
	}
	return len(e.s.membersWithTagLocked(marker)) == len(ids)
}

func (e *Editor) applyLocked(ctx context.Context, targets []string, edit mail.TagEdit, kind UndoActionType) error {
	ids := e.expandLocked(targets)
	if len(ids) == 0 {
		return nil
	}
	changes, err := e.editLocked(ctx, ids, edit)
	if err != nil {
		return err
	}
	e.finishLocked(ctx, kind, fmt.Sprintf("%s on %d conversations", edit.String(), len(ids)), changes)
	return nil
}

// editLocked sends one batched request and mirrors it on success. The
// session lock is released while the request is in flight.
func (e *Editor) editLocked(ctx context.Context, ids []string, edit mail.TagEdit) (map[string]mail.TagEdit, error) {
	if e.s.backend == nil {
		return nil, fmt.Errorf("backend not initialized")
	}
	req := MutationRequest{Expression: edit.String(), Targets: append([]string(nil), ids...)}
	e.logger.Debug().Str("expression", req.Expression).Str("targets", req.TargetList()).Msg("sending tag edit")
	if err := e.send(func() error { return e.s.backend.EditTags(ctx, req) }); err != nil {
		e.logger.Error().Err(err).Str("expression", req.Expression).Int("targets", len(ids)).Msg("tag edit failed")
		return nil, fmt.Errorf("failed to apply %q: %w", req.Expression, err)
	}
	return e.s.mirrorLocked(ids, edit), nil
}

// finishLocked records the undo entry, clears the selection and
// re-derives the views.
func (e *Editor) finishLocked(ctx context.Context, kind UndoActionType, description string, changes map[string]mail.TagEdit) {
	if len(changes) > 0 {
		action := &UndoableAction{Type: kind, Description: description, Changes: changes}
		if err := e.undo.RecordAction(ctx, action); err != nil {
			e.logger.Warn().Err(err).Msg("could not record undo action")
		}
	}
	e.selected = make(map[string]struct{})
	e.s.rederiveLocked()
}

// abortLocked keeps whatever earlier steps of a failed multi-step mutation
// already changed. The selection survives when nothing changed.
func (e *Editor) abortLocked(ctx context.Context, kind UndoActionType, description string, changes map[string]mail.TagEdit) {
	if len(changes) == 0 {
		return
	}
	e.finishLocked(ctx, kind, description, changes)
}

// send runs fn with the session unlocked so navigation continues while a
// request is in flight.
func (e *Editor) send(fn func() error) error {
	e.s.mu.Unlock()
	defer e.s.mu.Lock()
	return fn()
}

func mergeChanges(into, changes map[string]mail.TagEdit) {
	for id, c := range changes {
		into[id] = into[id].Then(c)
	}
}
