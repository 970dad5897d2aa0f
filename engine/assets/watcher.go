package assets

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeKind classifies an asset change.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota
	ChangeCreated
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeModified:
		return "modified"
	case ChangeCreated:
		return "created"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ChangeEvent reports a changed asset by slash-separated path relative to the watched root.
type ChangeEvent struct {
	Path string
	Kind ChangeKind
}

// DefaultEventBuffer is the capacity of the Events channel.
const DefaultEventBuffer = 64

type watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	events  chan ChangeEvent
	done    chan struct{}
	closeMu sync.Once
	wg      sync.WaitGroup
	log     *logger.Logger
}

// Watcher forwards filesystem changes under the asset root to a channel. The forwarding goroutine never
// touches GPU state; the engine drains Events on the main thread and rebuilds what changed there.
type Watcher interface {
	// Events returns the channel change events are delivered on. It is closed by Close.
	// When the channel is full, new events are dropped and logged.
	//
	// Returns:
	//   - <-chan ChangeEvent: the event channel
	Events() <-chan ChangeEvent

	// Close stops watching and closes the event channel. It is safe to call more than once.
	//
	// Returns:
	//   - error: the fsnotify close error, if any
	Close() error
}

var _ Watcher = &watcher{}

// NewWatcher watches root and every directory below it.
//
// Parameters:
//   - root: the directory to watch
//   - log: destination for dropped events and watch errors; nil uses the process logger
//
// Returns:
//   - Watcher: the running watcher
//   - error: error if fsnotify cannot be started or a directory cannot be added
func NewWatcher(root string, log *logger.Logger) (Watcher, error) {
	if log == nil {
		log = logger.Provide()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start asset watcher: %w", err)
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(p)
		}
		return nil
	})
	if err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}

	w := &watcher{
		root:   root,
		fsw:    fsw,
		events: make(chan ChangeEvent, DefaultEventBuffer),
		done:   make(chan struct{}),
		log:    log.Named("assets"),
	}
	w.wg.Add(1)
	go w.forward()
	return w, nil
}

func (w *watcher) Events() <-chan ChangeEvent {
	return w.events
}

func (w *watcher) Close() error {
	var err error
	w.closeMu.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
		close(w.events)
	})
	return err
}

func (w *watcher) forward() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			change, ok := w.translate(event)
			if !ok {
				continue
			}
			select {
			case w.events <- change:
			default:
				w.log.Warn("asset event dropped", zap.String("path", change.Path), zap.Stringer("kind", change.Kind))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("asset watcher error", zap.Error(err))
		}
	}
}

// translate maps an fsnotify event to a ChangeEvent. Chmod-only events are ignored.
func (w *watcher) translate(event fsnotify.Event) (ChangeEvent, bool) {
	var kind ChangeKind
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		kind = ChangeRemoved
	case event.Has(fsnotify.Create):
		kind = ChangeCreated
	case event.Has(fsnotify.Write):
		kind = ChangeModified
	default:
		return ChangeEvent{}, false
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	return ChangeEvent{Path: filepath.ToSlash(rel), Kind: kind}, true
}
