package tui

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc/pool"

	"github.com/slumberhq/slumber/internal/collection"
)

// poster is the subset of Controller a Watcher needs: somewhere to post
// the CollectionStartReload/CollectionEndReload messages it produces.
type poster interface {
	Post(msg Msg)
}

// Watcher watches one collection file for data-modifying events and
// reports them through the controller's message queue. Grounded on the
// teacher's session.Manager.Run split between a goroutine that only
// ever posts (never blocks on the thing it's watching) and a
// background worker pool that does the actual (potentially slow) work
// — here, fsnotify for the watch and conc/pool for the parse.
type Watcher struct {
	Path string

	parsePool *pool.Pool
}

// NewWatcher builds a Watcher for path. Parsing tasks run on their own
// small pool so a burst of saves doesn't pile up unboundedly, while
// still never serializing behind the watch goroutine itself.
func NewWatcher(path string) *Watcher {
	return &Watcher{Path: path, parsePool: pool.New().WithMaxGoroutines(4)}
}

// Run watches w.Path until ctx is cancelled, posting CollectionStartReload
// the instant a data-modifying event is seen (write, create, rename,
// remove) and
// CollectionEndReload once the resulting parse (dispatched to the
// background pool) finishes.
func (w *Watcher) Run(ctx context.Context, p poster) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.Post(CollectionEndReload{Path: w.Path, Err: fmt.Errorf("create watcher: %w", err)})
		return
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(w.Path); err != nil {
		p.Post(CollectionEndReload{Path: w.Path, Err: fmt.Errorf("watch %s: %w", w.Path, err)})
		return
	}

	for {
		select {
		case <-ctx.Done():
			w.parsePool.Wait()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isDataModifying(event.Op) {
				continue
			}
			p.Post(CollectionStartReload{Path: w.Path})

			w.parsePool.Go(func() {
				col, err := collection.Load(w.Path)
				p.Post(CollectionEndReload{Path: w.Path, Collection: col, Err: err})
			})

		case werr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.Post(CollectionEndReload{Path: w.Path, Err: fmt.Errorf("watch error: %w", werr)})
		}
	}
}

// isDataModifying reports whether op represents a change to the file's
// contents rather than a metadata-only event (chmod).
func isDataModifying(op fsnotify.Op) bool {
	return op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}
