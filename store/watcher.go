package store

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/stage"
)

// Change is a stage record written on disk
type Change struct {
	Stage  string
	Record stage.Record
}

// Watcher reports stage records written into a directory
type Watcher struct {
	directory string
	watcher   *fsnotify.Watcher
	changes   chan Change
	done      chan bool
	doneOnce  sync.Once
	wg        sync.WaitGroup
}

// NewWatcher creates a new Watcher on directory
func NewWatcher(directory string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(directory); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		directory: directory,
		watcher:   fw,
		changes:   make(chan Change, len(stage.Sequence)),
		done:      make(chan bool),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Changes returns the channel of record changes, closed on Stop
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

func (w *Watcher) run() {
	defer w.wg.Done()
	defer close(w.changes)
Loop:
	for {
		select {
		case <-w.done:
			break Loop
		case event, ok := <-w.watcher.Events:
			if !ok {
				break Loop
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name, found := StageOf(event.Name)
			if !found {
				continue
			}
			data, err := os.ReadFile(event.Name)
			if err != nil {
				continue
			}
			record, err := stage.UnmarshalRecord(data)
			if err != nil || record.Identity.IsZero() {
				log.Warnln("Watcher ignoring unreadable record", event.Name, err)
				continue
			}
			select {
			case w.changes <- Change{Stage: name, Record: record}:
			case <-w.done:
				break Loop
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				break Loop
			}
			log.Warnln("Watcher error on", w.directory, err)
		}
	}
}

// Stop stops watching
func (w *Watcher) Stop() {
	w.doneOnce.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
	w.watcher.Close()
}
