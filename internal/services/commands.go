package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Command names understood by Commander.Execute
const (
	CmdActivateFirst       = "activateFirst"
	CmdActivateLast        = "activateLast"
	CmdStepUp              = "stepUp"
	CmdStepDown            = "stepDown"
	CmdStepOutward         = "stepOutward"
	CmdStepInward          = "stepInward"
	CmdToggleGroupCollapse = "toggleGroupCollapse"
	CmdToggleSelect        = "toggleSelect"
	CmdToggleFlatFocused   = "toggleFlatFocused"
	CmdOpenActive          = "openActive"
	CmdDeleteActive        = "deleteActive"
	CmdMarkDoneActive      = "markDoneActive"
	CmdTagActive           = "tagActive"
	CmdGroupActive         = "groupActive"
	CmdUndo                = "undo"
	CmdRefresh             = "refresh"
)

// targetCommands act on the effective targets
var targetCommands = map[string]bool{
	CmdDeleteActive:   true,
	CmdMarkDoneActive: true,
	CmdTagActive:      true,
	CmdGroupActive:    true,
}

var mutationCommands = map[string]bool{
	CmdDeleteActive:   true,
	CmdMarkDoneActive: true,
	CmdTagActive:      true,
	CmdGroupActive:    true,
	CmdUndo:           true,
	CmdRefresh:        true,
}

// Commands lists every command name
func Commands() []string {
	return []string{
		CmdActivateFirst, CmdActivateLast, CmdStepUp, CmdStepDown,
		CmdStepOutward, CmdStepInward, CmdToggleGroupCollapse, CmdToggleSelect,
		CmdToggleFlatFocused, CmdOpenActive, CmdDeleteActive, CmdMarkDoneActive,
		CmdTagActive, CmdGroupActive, CmdUndo, CmdRefresh,
	}
}

// IsMutation reports whether a command talks to the backend and should
// run off the input loop.
func IsMutation(name string) bool {
	return mutationCommands[name]
}

// Result is the outcome of one command. Failures never escape as faults;
// they are reported through Err and a user-facing Status.
type Result struct {
	Command string
	Status  string
	Err     error
}

// Commander maps named commands onto the session's controllers
type Commander struct {
	s      *Session
	logger zerolog.Logger

	mu   sync.Mutex
	last chan struct{} // closed when the latest async command finished
}

// NewCommander creates a command surface for a session
func NewCommander(s *Session) *Commander {
	return &Commander{s: s, logger: zerolog.Nop()}
}

// SetLogger sets the logger for command tracing
func (c *Commander) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// Execute runs one command synchronously
func (c *Commander) Execute(ctx context.Context, name, arg string) Result {
	return c.execute(ctx, name, arg, c.targetsFor(name))
}

// ExecuteAsync runs a command on its own goroutine and hands the result to
// done. Targets are resolved before it returns, so input that follows
// cannot change what the command acts on. Async commands finish in the
// order they were issued. The session lock is released while requests are
// in flight, so navigation keeps working meanwhile.
func (c *Commander) ExecuteAsync(ctx context.Context, name, arg string, done func(Result)) {
	targets := c.targetsFor(name)

	c.mu.Lock()
	prev := c.last
	next := make(chan struct{})
	c.last = next
	c.mu.Unlock()

	go func() {
		defer close(next)
		if prev != nil {
			<-prev
		}
		res := c.execute(ctx, name, arg, targets)
		if done != nil {
			done(res)
		}
	}()
}

func (c *Commander) targetsFor(name string) []string {
	if !targetCommands[name] {
		return nil
	}
	return c.s.Editor().EffectiveTargets()
}

func (c *Commander) execute(ctx context.Context, name, arg string, targets []string) (res Result) {
	res.Command = name
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("command %s panicked: %v", name, r)
			res.Status = "Error: " + res.Err.Error()
		}
		if res.Err != nil {
			c.logger.Error().Err(res.Err).Str("command", name).Msg("command failed")
		} else {
			c.logger.Debug().Str("command", name).Str("status", res.Status).Msg("command executed")
		}
	}()

	status, err := c.run(ctx, name, strings.TrimSpace(arg), targets)
	res.Status, res.Err = status, err
	if err != nil {
		res.Status = "Error: " + err.Error()
		if IsRetryableError(err) {
			res.Status += " (temporary, try again)"
		}
	}
	return res
}

func (c *Commander) run(ctx context.Context, name, arg string, targets []string) (string, error) {
	nav, ed := c.s.Navigator(), c.s.Editor()

	switch name {
	case CmdActivateFirst:
		c.loadFlat(ctx)
		nav.ActivateFirst()
		return "", c.loadActive(ctx)
	case CmdActivateLast:
		c.loadFlat(ctx)
		nav.ActivateLast()
		return "", c.loadActive(ctx)
	case CmdStepUp:
		c.loadFlat(ctx)
		nav.StepUp()
		return "", c.loadActive(ctx)
	case CmdStepDown:
		c.loadFlat(ctx)
		nav.StepDown()
		return "", c.loadActive(ctx)

	case CmdStepOutward:
		if !nav.StepOutward() {
			return "Already at the start of the conversation", nil
		}
		return "", nil
	case CmdStepInward:
		if !nav.StepInward() {
			return "No further replies", nil
		}
		return "", nil

	case CmdToggleGroupCollapse:
		marker := arg
		if marker == "" {
			u, _, ok := nav.Active()
			if !ok {
				return "", ErrNoActiveUnit
			}
			marker = u.GroupMarker
		}
		if marker == "" || !nav.ToggleGroupCollapse(ctx, marker) {
			return "Not in a group", nil
		}
		if nav.IsCollapsed(marker) {
			return "Group collapsed", nil
		}
		c.loadFlat(ctx)
		return "Group expanded", c.loadActive(ctx)

	case CmdToggleSelect:
		if arg != "" {
			if !ed.ToggleSelect(arg) {
				return "", fmt.Errorf("%q is not visible: %w", arg, ErrNotFound)
			}
		} else if _, ok := ed.ToggleSelectActive(); !ok {
			return "", ErrNoActiveUnit
		}
		return fmt.Sprintf("%d selected", len(ed.Selected())), nil

	case CmdToggleFlatFocused:
		if nav.Mode() == ModeFocused {
			c.loadVisible(ctx)
		}
		if nav.ToggleFlatFocused() == ModeFlat {
			return "Flat view", nil
		}
		return "Focused view", c.loadActive(ctx)

	case CmdOpenActive:
		u, _, ok := nav.Active()
		if !ok {
			return "", ErrNoActiveUnit
		}
		if err := c.s.EnsureMessages(ctx, u.ThreadID); err != nil {
			return "", err
		}
		sum, _ := c.s.Summary(u.ThreadID)
		return fmt.Sprintf("%s (%d messages)", sum.Subject, len(c.s.Messages(u.ThreadID))), nil

	case CmdDeleteActive:
		return c.mutate(ctx, targets, func(targets []string) (string, error) {
			return fmt.Sprintf("Deleted %d conversations", len(targets)), ed.Delete(ctx, targets)
		})
	case CmdMarkDoneActive:
		return c.mutate(ctx, targets, func(targets []string) (string, error) {
			return fmt.Sprintf("Marked %d conversations done", len(targets)), ed.MarkDone(ctx, targets)
		})
	case CmdTagActive:
		if arg == "" {
			return "", fmt.Errorf("tag expression cannot be empty: %w", ErrInvalidInput)
		}
		return c.mutate(ctx, targets, func(targets []string) (string, error) {
			return fmt.Sprintf("Applied %q to %d conversations", arg, len(targets)), ed.ApplyTagEdit(ctx, targets, arg)
		})
	case CmdGroupActive:
		return c.mutate(ctx, targets, func(targets []string) (string, error) {
			marker, err := ed.Group(ctx, targets)
			if marker == "" {
				return fmt.Sprintf("Ungrouped %d conversations", len(targets)), err
			}
			return fmt.Sprintf("Grouped %d conversations", len(targets)), err
		})

	case CmdUndo:
		if err := ed.Undo(ctx); err != nil {
			if errors.Is(err, ErrNothingToUndo) {
				return "Nothing to undo", nil
			}
			return "", err
		}
		c.loadFlat(ctx)
		return "Undone", nil

	case CmdRefresh:
		query := arg
		if query == "" {
			query = c.s.Query()
		}
		if err := c.s.Refresh(ctx, query, c.s.Ordering()); err != nil {
			return "", err
		}
		c.loadFlat(ctx)
		return fmt.Sprintf("%d entries", len(c.s.Entries())), c.loadActive(ctx)
	}
	return "", fmt.Errorf("%q: %w", name, ErrUnknownCommand)
}

// mutate runs fn on the targets resolved when the command was issued. An
// empty target set is a no-op. Edits can regroup conversations, so flat
// mode loads whatever became visible.
func (c *Commander) mutate(ctx context.Context, targets []string, fn func(targets []string) (string, error)) (string, error) {
	if len(targets) == 0 {
		return "Nothing to do", nil
	}
	status, err := fn(targets)
	c.loadFlat(ctx)
	if err != nil {
		return "", err
	}
	return status, nil
}

// loadFlat loads every visible conversation while in flat mode, so each
// of their messages is a unit of its own before a move is resolved.
func (c *Commander) loadFlat(ctx context.Context) {
	if c.s.Navigator().Mode() != ModeFlat {
		return
	}
	c.loadVisible(ctx)
}

func (c *Commander) loadVisible(ctx context.Context) {
	if err := c.s.EnsureMessages(ctx, c.s.VisibleThreadIDs()...); err != nil {
		c.logger.Warn().Err(err).Msg("some conversations could not be loaded for flat view")
	}
}

// loadActive makes sure the active conversation's messages are loaded so
// its focused view can be shown.
func (c *Commander) loadActive(ctx context.Context) error {
	u, _, ok := c.s.Navigator().Active()
	if !ok {
		return nil
	}
	return c.s.EnsureMessages(ctx, u.ThreadID)
}
