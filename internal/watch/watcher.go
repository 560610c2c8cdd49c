// Package watch delivers settled files from the inbox drop folder. Editors
// and sync clients write in bursts, so each path is held until no event has
// touched it for the settle window.
package watch

import (
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var ErrInvalidInput = errors.New("invalid input")

const defaultSettleWindow = 2 * time.Second

type Options struct {
	Dir          string
	SettleWindow time.Duration
	Logger       *log.Logger
}

type Watcher struct {
	fsw    *fsnotify.Watcher
	opts   Options
	handle func(path string)

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New watches opts.Dir and calls handle with each file path once it has
// settled. handle runs on timer goroutines, one path at a time per path.
func New(opts Options, handle func(path string)) (*Watcher, error) {
	if opts.Dir == "" || handle == nil {
		return nil, ErrInvalidInput
	}
	if opts.SettleWindow <= 0 {
		opts.SettleWindow = defaultSettleWindow
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(opts.Dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w := &Watcher{
		fsw:    fsw,
		opts:   opts,
		handle: handle,
		timers: map[string]*time.Timer{},
		done:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Printf("WARN inbox watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// schedule restarts the settle timer for a path; the last event wins.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.opts.SettleWindow, func() {
		w.mu.Lock()
		delete(w.timers, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return
		}
		w.handle(path)
	})
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
