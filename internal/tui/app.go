package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ajramos/tagmail/internal/config"
	"github.com/ajramos/tagmail/internal/services"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
)

// promptKind tells what the input line is collecting
type promptKind int

const (
	promptNone promptKind = iota
	promptTags
	promptQuery
)

// App is the terminal front end of a session. It only renders snapshots
// and forwards keys as named commands.
type App struct {
	*tview.Application

	session   *services.Session
	commander *services.Commander
	cfg       *config.Config
	keymap    config.Keymap
	logger    zerolog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	layout *tview.Flex
	list   *tview.Table
	thread *tview.TextView
	status *tview.TextView
	input  *tview.InputField

	mu      sync.Mutex
	prompt  promptKind
	message string

	// dispatch runs a command; replaced in tests
	dispatch func(name, arg string)
	// queue hands work to the UI goroutine
	queue func(func())
}

// NewApp builds the UI around a session
func NewApp(session *services.Session, cfg *config.Config, keymap config.Keymap, logger zerolog.Logger) (*App, error) {
	if session == nil || cfg == nil {
		return nil, fmt.Errorf("session and config are required")
	}
	if keymap == nil {
		keymap = config.DefaultKeymap()
	}
	if err := keymap.Validate(services.Commands()); err != nil {
		return nil, err
	}

	a := &App{
		Application: tview.NewApplication(),
		session:     session,
		commander:   services.NewCommander(session),
		cfg:         cfg,
		keymap:      keymap,
		logger:      logger.With().Str("component", "tui").Logger(),
		now:         time.Now,
		ctx:         context.Background(),
		cancel:      func() {},
	}
	a.commander.SetLogger(logger.With().Str("component", "commands").Logger())
	a.dispatch = a.runCommand
	a.queue = func(f func()) { a.QueueUpdateDraw(f) }
	a.initViews()
	return a, nil
}

func (a *App) initViews() {
	colors := a.cfg.Colors

	a.list = tview.NewTable().SetSelectable(true, false).SetFixed(0, 0)
	a.list.SetBorder(true).SetTitle(" Conversations ")
	a.list.SetBackgroundColor(colors.Background.Color())
	a.list.SetInputCapture(a.handleKey)

	a.thread = tview.NewTextView().SetDynamicColors(false).SetWrap(false)
	a.thread.SetBorder(true).SetTitle(" Thread ")
	a.thread.SetBackgroundColor(colors.Background.Color())

	a.status = tview.NewTextView()
	a.status.SetBackgroundColor(colors.Status.Color())

	a.input = tview.NewInputField()
	a.input.SetDoneFunc(a.promptDone)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.list, 0, 3, true).
		AddItem(a.thread, 0, 2, false).
		AddItem(a.status, 1, 0, false).
		AddItem(a.input, 0, 0, false)
	a.SetRoot(a.layout, true).SetFocus(a.list)
}

// Run loads query and blocks until the user quits
func (a *App) Run(ctx context.Context, query string) error {
	a.ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	go a.load(query)
	return a.Application.Run()
}

// load replaces the session's query and activates the first row
func (a *App) load(query string) {
	a.setMessage(fmt.Sprintf("Loading %q…", query))
	a.QueueUpdateDraw(a.render)

	ordering := services.OrderDefault
	if a.cfg.IsTodoQuery(query) {
		ordering = services.OrderDue
	}
	if err := a.session.Refresh(a.ctx, query, ordering); err != nil {
		a.logger.Error().Err(err).Str("query", query).Msg("refresh failed")
		a.setMessage("Error: " + err.Error())
		a.QueueUpdateDraw(a.render)
		return
	}
	res := a.commander.Execute(a.ctx, services.CmdActivateFirst, "")
	if res.Status == "" {
		res.Status = fmt.Sprintf("%d entries", len(a.session.Entries()))
	}
	a.finish(res)
}

// runCommand runs navigation and selection commands on the UI goroutine,
// in input order. Mutations pick their targets here too, and only the
// requests run off the loop.
func (a *App) runCommand(name, arg string) {
	if !services.IsMutation(name) {
		a.apply(a.commander.Execute(a.ctx, name, arg))
		return
	}
	a.setMessage("…")
	a.commander.ExecuteAsync(a.ctx, name, arg, a.finish)
}

func (a *App) finish(res services.Result) {
	a.queue(func() {
		a.apply(res)
	})
}

// apply shows a command result. Must run on the UI goroutine.
func (a *App) apply(res services.Result) {
	a.setMessage(res.Status)
	a.render()
}

// handleKey maps a key to a command. Keys the map does not know fall
// through to the table.
func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	name := keyName(ev)
	switch name {
	case "q":
		a.Stop()
		return nil
	case "/":
		a.openPrompt(promptQuery, "Query: ", a.session.Query())
		return nil
	}

	command, ok := a.keymap[name]
	if !ok {
		return ev
	}
	if command == services.CmdTagActive {
		a.openPrompt(promptTags, "Tags (+add -remove): ", "")
		return nil
	}
	a.dispatch(command, "")
	return nil
}

func (a *App) openPrompt(kind promptKind, label, text string) {
	a.mu.Lock()
	a.prompt = kind
	a.mu.Unlock()
	a.input.SetLabel(label).SetText(text)
	a.layout.ResizeItem(a.input, 1, 0)
	a.SetFocus(a.input)
}

func (a *App) closePrompt() promptKind {
	a.mu.Lock()
	kind := a.prompt
	a.prompt = promptNone
	a.mu.Unlock()
	a.layout.ResizeItem(a.input, 0, 0)
	a.SetFocus(a.list)
	return kind
}

func (a *App) promptDone(key tcell.Key) {
	text := strings.TrimSpace(a.input.GetText())
	kind := a.closePrompt()
	if key != tcell.KeyEnter || text == "" {
		return
	}
	switch kind {
	case promptTags:
		a.dispatch(services.CmdTagActive, text)
	case promptQuery:
		go a.load(text)
	}
}

func (a *App) setMessage(msg string) {
	a.mu.Lock()
	a.message = msg
	a.mu.Unlock()
}

// render redraws every view from a fresh snapshot. Must run on the UI
// goroutine.
func (a *App) render() {
	snap := takeSnapshot(a.session)
	now := a.now()

	a.list.Clear()
	for i, u := range snap.units {
		r := buildRow(snap, u, now, a.cfg.Colors)
		cells := []string{r.Mark, r.Date, r.Authors, r.Count, r.Subject, r.Tags}
		for col, text := range cells {
			cell := tview.NewTableCell(tview.Escape(text)).SetTextColor(r.Color)
			if col == len(cells)-1 {
				cell.SetTextColor(a.cfg.Colors.Tags.Color()).SetExpansion(1)
			}
			a.list.SetCell(i, col, cell)
		}
	}
	if snap.active >= 0 {
		a.list.Select(snap.active, 0)
	}

	title := " Thread "
	if snap.active >= 0 && snap.active < len(snap.units) {
		if sum, ok := snap.summary(snap.units[snap.active].ThreadID); ok {
			title = fmt.Sprintf(" %s ", sum.Subject)
		}
	}
	a.thread.SetTitle(title)
	if snap.mode == services.ModeFocused {
		a.thread.SetText(strings.Join(threadLines(snap.view), "\n"))
	} else {
		a.thread.SetText("")
	}

	a.mu.Lock()
	msg := a.message
	a.mu.Unlock()
	a.status.SetText(statusLine(a.session.Query(), snap, msg))
}

func statusLine(query string, snap snapshot, msg string) string {
	parts := []string{"tagmail", query, snap.mode.String()}
	if n := len(snap.selected); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	if msg != "" {
		parts = append(parts, msg)
	}
	return strings.Join(parts, " | ")
}
