// Package tui orchestrates terminal input, background tasks, and
// redraws for the request client: a single-threaded cooperative message
// loop fed by background tasks (HTTP sends, collection reloads) that
// report their results back as Msg values instead of touching shared
// state directly.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"

	"github.com/slumberhq/slumber/internal/collection"
	"github.com/slumberhq/slumber/internal/httpengine"
	"github.com/slumberhq/slumber/internal/keybind"
	"github.com/slumberhq/slumber/internal/template"
)

// MaxHTTPRequests bounds how many HttpBeginRequest tasks the controller
// will have outstanding at once. This is a controller-level bound on
// background task fan-out, separate from httpengine.Engine's own
// socket-level semaphore; the two share the same limit by convention,
// but this one exists so HasActiveRequests can answer "is anything in
// flight" without reaching into the engine's internals.
const MaxHTTPRequests = 100

// TickInterval is how often the loop wakes on its own, so the UI
// redraws during in-flight requests to advance any visible timers even
// when no input or message has arrived.
const TickInterval = 250 * time.Millisecond

// InputSource abstracts reading the next terminal input event so the
// controller is testable without a real terminal. Next blocks until an
// event is available, ctx is cancelled, or the input stream ends.
type InputSource interface {
	Next(ctx context.Context) (keybind.KeyEvent, error)
}

// View receives every Msg the controller processes, in order, and
// reports whether handling it changed anything worth a redraw.
// Rendering itself stays out of this package's scope.
type View interface {
	Handle(msg Msg) (changed bool)
}

// ContextBuilder assembles a per-request template.Context: the active
// profile's field source, the prompter wired to the modal system, and
// the response source for request() chaining. Supplied by the
// application wiring the controller together, since the controller
// itself has no opinion on profile selection.
type ContextBuilder func(recipe *collection.Recipe, profileID *collection.ProfileId) *template.Context

// BuildOptionsFor resolves the per-field overrides (editable-template
// edits, index-addressed) that should be applied on top of recipe before
// it's rendered. May return nil for "no overrides." Supplied by the
// application wiring the controller together, mirroring ContextBuilder.
type BuildOptionsFor func(recipe *collection.Recipe) *httpengine.BuildOptions

// Controller runs the main message loop: terminal input, an internal
// message queue, and a periodic tick compete in a single select,
// processed one at a time and in order.
type Controller struct {
	input        InputSource
	view         View
	engine       *httpengine.Engine
	keys         *keybind.Map
	editor       EditorLauncher
	watcher      *Watcher
	buildContext ContextBuilder
	buildOptions BuildOptionsFor
	redraw       func()

	msgs    chan Msg
	inputCh chan keybind.KeyEvent
	sem     *semaphore.Weighted
	tasks   *pool.Pool
	tickDur time.Duration
}

// Options configures a Controller. TickInterval defaults to
// tui.TickInterval if zero, and QueueSize to 256.
type Options struct {
	Input        InputSource
	View         View
	Engine       *httpengine.Engine
	Keys         *keybind.Map
	Editor       EditorLauncher
	Watcher      *Watcher
	BuildContext ContextBuilder
	BuildOptions BuildOptionsFor
	Redraw       func()
	TickInterval time.Duration
	QueueSize    int
}

// New builds a Controller ready to Run.
func New(opts Options) *Controller {
	queue := opts.QueueSize
	if queue <= 0 {
		queue = 256
	}
	return &Controller{
		input:        opts.Input,
		view:         opts.View,
		engine:       opts.Engine,
		keys:         opts.Keys,
		editor:       opts.Editor,
		watcher:      opts.Watcher,
		buildContext: opts.BuildContext,
		buildOptions: opts.BuildOptions,
		redraw:       opts.Redraw,
		tickDur:      opts.TickInterval,
		msgs:         make(chan Msg, queue),
		sem:          semaphore.NewWeighted(MaxHTTPRequests),
		tasks:        pool.New().WithMaxGoroutines(MaxHTTPRequests),
	}
}

// Post enqueues a message for the next loop iteration. Safe to call
// from any goroutine, including background tasks reporting their
// result.
func (c *Controller) Post(msg Msg) {
	select {
	case c.msgs <- msg:
	default:
		// The queue is saturated; drop rather than block a background
		// task's reporting goroutine forever. A full queue means the
		// loop is already behind and a redraw is imminent regardless.
	}
}

// HasActiveRequests reports whether any HttpBeginRequest task is
// currently in flight. Implemented by probing whether the full permit
// weight is available: if acquiring every permit at once succeeds, no
// request currently holds one.
func (c *Controller) HasActiveRequests() bool {
	if c.sem.TryAcquire(MaxHTTPRequests) {
		c.sem.Release(MaxHTTPRequests)
		return false
	}
	return true
}

// Run drives the message loop until ctx is cancelled or a Quit/ForceQuit
// message is processed. Quit waits for in-flight HTTP tasks to settle
// before returning; ForceQuit returns immediately.
func (c *Controller) Run(ctx context.Context) error {
	tick := c.tickDur
	if tick <= 0 {
		tick = TickInterval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	if c.watcher != nil {
		go c.watcher.Run(ctx, c)
	}

	c.inputCh = make(chan keybind.KeyEvent)
	inputErrCh := make(chan error, 1)
	if c.input != nil {
		go func() {
			for {
				ev, err := c.input.Next(ctx)
				if err != nil {
					inputErrCh <- err
					return
				}
				select {
				case c.inputCh <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		changed, quit, force := false, false, false

		select {
		case <-ctx.Done():
			c.tasks.Wait()
			return nil

		case ev := <-c.inputCh:
			action, ok := c.keys.Lookup(ev)
			var actionStr string
			if ok {
				actionStr = string(action)
			}
			changed, quit, force = c.dispatch(Input{Action: actionStr, Raw: ev})

		case err := <-inputErrCh:
			return fmt.Errorf("read input: %w", err)

		case msg := <-c.msgs:
			changed, quit, force = c.dispatch(msg)

		case <-ticker.C:
			changed = true
		}

		// Drain any further messages already queued so a burst of
		// background-task results collapses into one redraw instead of
		// one per message.
		for !force {
			select {
			case next := <-c.msgs:
				nc, nq, nf := c.dispatch(next)
				changed = changed || nc
				quit = quit || nq
				force = force || nf
			default:
				goto drained
			}
		}
	drained:

		if force {
			c.maybeRedraw()
			return nil
		}
		if quit {
			c.tasks.Wait()
			c.maybeRedraw()
			return nil
		}
		if changed {
			c.maybeRedraw()
		}
	}
}

func (c *Controller) maybeRedraw() {
	if c.redraw != nil {
		c.redraw()
	}
}

// dispatch hands msg to the view and, for message types the controller
// itself is responsible for acting on (spawning background tasks,
// driving the editor), performs that action too. Returns whether the
// view reports a change and whether this message requests a (possibly
// forced) shutdown.
func (c *Controller) dispatch(msg Msg) (changed, quit, force bool) {
	switch m := msg.(type) {
	case HttpBeginRequest:
		c.beginHTTPRequest(m)
	case EditFile:
		c.runEditor(m)
	case Quit:
		quit = true
	case ForceQuit:
		quit, force = true, true
	}

	if c.view != nil {
		changed = c.view.Handle(msg) || changed
	}
	return changed, quit, force
}

// beginHTTPRequest spawns the background task backing one request's
// lifecycle: acquire a permit, build, report Loading, send, report
// Complete, release the permit. A panic inside the task is caught by
// conc/pool, so the loop keeps running; the pool re-raises it when Run
// later waits on the pool (on Quit or cancellation).
func (c *Controller) beginHTTPRequest(m HttpBeginRequest) {
	c.tasks.Go(func() {
		ctx := context.Background()
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer c.sem.Release(1)

		tctx := c.buildContext(m.Recipe, m.ProfileID)
		var opts *httpengine.BuildOptions
		if c.buildOptions != nil {
			opts = c.buildOptions(m.Recipe)
		}
		built, err := httpengine.Build(ctx, tctx, m.Recipe, opts)
		if err != nil {
			var buildErr *httpengine.RequestBuildError
			if be, ok := err.(*httpengine.RequestBuildError); ok {
				buildErr = be
			}
			c.Post(HttpBuildError{RecipeID: m.RecipeID, Err: buildErr})
			return
		}

		c.Post(HttpLoading{RequestID: built.ID, RecipeID: m.RecipeID, Built: built})

		exchange, sendErr := c.engine.Send(ctx, built)
		if sendErr != nil {
			var reqErr *httpengine.RequestError
			if re, ok := sendErr.(*httpengine.RequestError); ok {
				reqErr = re
			}
			c.Post(HttpComplete{RequestID: built.ID, RecipeID: m.RecipeID, Err: reqErr})
			return
		}
		c.Post(HttpComplete{RequestID: built.ID, RecipeID: m.RecipeID, Exchange: exchange})
	})
}
