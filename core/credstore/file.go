package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	credentialsFileName = "credentials.json"
	credentialsFileMode = 0o600

	// watchDebounce coalesces rapid sequences of filesystem events into a
	// single reload.
	watchDebounce = 50 * time.Millisecond
)

// File is a Store backed by a single JSON document on disk. Writes are
// atomic (temp file + rename), and Watch observes external mutations through
// filesystem notifications, so multiple processes pointed at the same
// directory stay in sync.
type File struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	snapshot map[string]string
}

// FileOption configures a File store.
type FileOption func(*File)

// WithFileLogger configures structured logging for watch-loop failures.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(f *File) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFile creates a file store rooted at dir, creating the directory if
// needed. The credentials document lives at dir/credentials.json.
func NewFile(dir string, opts ...FileOption) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Join(ErrSaveFailed, err)
	}

	f := &File{
		path:   filepath.Join(dir, credentialsFileName),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	f.snapshot = doc

	return f, nil
}

// Get returns the value for key, or ErrNotFound.
func (f *File) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return "", err
	}
	f.snapshot = doc

	v, ok := doc[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set writes the value for key.
func (f *File) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	doc[key] = value
	if err := f.write(doc); err != nil {
		return err
	}
	f.snapshot = doc
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (f *File) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	changed := false
	for _, key := range keys {
		if _, ok := doc[key]; ok {
			delete(doc, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := f.write(doc); err != nil {
		return err
	}
	f.snapshot = doc
	return nil
}

// Watch observes the credentials document through filesystem notifications
// and emits one Change per key that differs from the previous snapshot.
// Changes written through this same instance update the snapshot inline and
// are therefore not echoed back.
//
// When the runtime does not support filesystem notifications, Watch degrades
// to a channel that never fires rather than returning an error.
func (f *File) Watch(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, watchBuffer)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.logger.WarnContext(ctx, "credstore: filesystem notifications unavailable, watch disabled",
			slog.String("error", err.Error()))
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch, nil
	}

	// Watch the directory rather than the file: atomic renames replace the
	// inode, which would silently detach a file-level watch.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		f.logger.WarnContext(ctx, "credstore: cannot watch credentials directory, watch disabled",
			slog.String("error", err.Error()))
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch, nil
	}

	go f.watchLoop(ctx, watcher, ch)

	return ch, nil
}

func (f *File) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, out chan Change) {
	defer close(out)
	defer watcher.Close()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != credentialsFileName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerCh = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case <-timerCh:
			for _, change := range f.diff() {
				select {
				case out <- change:
				default: // watcher buffer full, drop
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.WarnContext(ctx, "credstore: watch error", slog.String("error", err.Error()))
		}
	}
}

// diff reloads the document and returns the changes relative to the previous
// snapshot, advancing the snapshot.
func (f *File) diff() []Change {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil
	}

	var changes []Change
	for key, value := range doc {
		if old, ok := f.snapshot[key]; !ok || old != value {
			changes = append(changes, Change{Key: key, Value: value, Present: true})
		}
	}
	for key := range f.snapshot {
		if _, ok := doc[key]; !ok {
			changes = append(changes, Change{Key: key, Present: false})
		}
	}
	f.snapshot = doc
	return changes
}

// read loads the document from disk. A missing or corrupt file reads as an
// empty document so a damaged cache never blocks authentication.
func (f *File) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	doc := make(map[string]string)
	if err := json.Unmarshal(data, &doc); err != nil {
		f.logger.Warn("credstore: corrupt credentials file, treating as empty",
			slog.String("path", f.path))
		return make(map[string]string), nil
	}
	return doc, nil
}

func (f *File) write(doc map[string]string) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Join(ErrSaveFailed, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, credentialsFileMode); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	return nil
}

// Snapshot returns a copy of the last loaded document. Intended for tests.
func (f *File) Snapshot() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.snapshot)
}
