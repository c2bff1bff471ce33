// manage package

package manage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/bundle"
	"github.com/jonoton/vigil/control"
	pubsubmutex "github.com/jonoton/vigil/pubsubMutex"
	"github.com/jonoton/vigil/runtime"
	"github.com/jonoton/vigil/store"
	"github.com/jonoton/vigil/task"
)

// ErrNoConfig is returned when vigil.yaml could not be loaded
var ErrNoConfig = errors.New("no manage config")

type managed struct {
	entry      taskEntry
	configPath string
	task       *task.Task
	records    *store.Watcher
}

// Manage contains all the tasks and manages them
type Manage struct {
	manageConf Config
	tasks      map[string]*managed
	hub        *pubsubmutex.PubSubMutex
	server     *control.Server
	wtr        *fsnotify.Watcher
	logsDir    string
	stop       chan bool
	done       chan bool
}

// NewManage creates a new Manage from vigil.yaml in the config directory
func NewManage() (*Manage, error) {
	conf := NewConfig(runtime.GetRuntimeDirectory(runtime.ConfigDirectory) + ConfigFilename)
	if conf == nil {
		return nil, ErrNoConfig
	}
	return NewManageWithConfig(*conf, runtime.EnsureRuntimeDirectory(runtime.LogsDirectory))
}

// NewManageWithConfig creates a new Manage, logsDir empty keeps everything in the main log
func NewManageWithConfig(conf Config, logsDir string) (*Manage, error) {
	wtr, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	hub := pubsubmutex.New(conf.hubCapacity())
	m := &Manage{
		manageConf: conf,
		tasks:      make(map[string]*managed),
		hub:        hub,
		server:     control.NewServer(control.NewConfig(conf.controlPath()), hub, logsDir),
		wtr:        wtr,
		logsDir:    logsDir,
		stop:       make(chan bool),
		done:       make(chan bool),
	}
	return m, nil
}

// Server returns the control server
func (m *Manage) Server() *control.Server {
	return m.server
}

// GetTaskNames returns a sorted list of task names
func (m *Manage) GetTaskNames() []string {
	return m.server.TaskNames()
}

// GetDataDirectory returns the stage record root
func (m *Manage) GetDataDirectory() string {
	return m.manageConf.dataRoot()
}

// Start runs the processes
func (m *Manage) Start() {
	m.hub.Start()
	m.addAllTasks()
	go m.run()
}

// Stop the manage
func (m *Manage) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
}

// Wait until done
func (m *Manage) Wait() {
	<-m.done
}

func (m *Manage) addAllTasks() {
	for _, cur := range m.manageConf.Tasks {
		mt, err := m.setupTask(cur)
		if err != nil {
			log.Errorln("Could not setup", cur.Name, err)
			continue
		}
		m.addTask(mt)
	}
}

func (m *Manage) setupTask(entry taskEntry) (*managed, error) {
	if entry.ConfigPath == "" {
		return nil, fmt.Errorf("task %s has no config", entry.Name)
	}
	configPath := runtime.Resolve(runtime.ConfigDirectory, entry.ConfigPath)
	conf := task.NewConfig(configPath)
	if conf == nil {
		return nil, fmt.Errorf("task config %s not loaded", configPath)
	}
	fileStore := store.NewFileStore(m.manageConf.dataRoot(), conf.Selection)
	if _, err := fileStore.Ensure(bundle.DefaultRecords(bundle.NewRegistry())); err != nil {
		return nil, err
	}
	source, err := conf.NewSource(entry.Name, nil)
	if err != nil {
		return nil, err
	}
	records, err := store.NewWatcher(fileStore.Directory)
	if err != nil {
		log.Warnln("Not watching records of", entry.Name, err)
		records = nil
	}
	return &managed{
		entry:      entry,
		configPath: configPath,
		task:       task.NewTask(entry.Name, *conf, source, fileStore, m.hub, m.logsDir),
		records:    records,
	}, nil
}

func (m *Manage) addTask(mt *managed) {
	log.Infoln("Add task", mt.entry.Name)
	m.tasks[mt.entry.Name] = mt
	m.server.AddTask(mt.entry.Name, mt.task.Queue())
	if err := m.wtr.Add(filepath.Dir(mt.configPath)); err != nil {
		log.Warnln("Not watching config of", mt.entry.Name, err)
	}
	if mt.records != nil {
		go forwardRecords(mt.records, mt.task.Queue())
	}
	mt.task.Start()
}

// forwardRecords pushes record files edited on disk into the task queue
func forwardRecords(records *store.Watcher, q *control.Queue) {
	for change := range records.Changes() {
		log.Infoln("Record changed for", change.Stage)
		if !q.Push(&control.Delta{
			Kind:     control.Override,
			Stage:    change.Stage,
			Identity: change.Record.Identity,
			Params:   change.Record.Params,
		}) {
			log.Warnln("Dropped record change for", change.Stage)
		}
	}
}

func (m *Manage) removeTask(mt *managed) {
	log.Infoln("Remove task", mt.entry.Name)
	mt.task.Stop()
	mt.task.Wait()
	if err := mt.task.Err(); err != nil {
		log.Warnln("Task", mt.entry.Name, "ended with", err)
	}
	if mt.records != nil {
		mt.records.Stop()
	}
	delete(m.tasks, mt.entry.Name)
}

func (m *Manage) doTaskConfigChanges(modPath string) {
	for _, mt := range m.tasksUsing(modPath) {
		log.Infoln("Config changed", modPath)
		m.removeTask(mt)
		entry, found := m.manageConf.entry(mt.entry.Name)
		if !found {
			continue
		}
		newTask, err := m.setupTask(entry)
		if err != nil {
			log.Warningln("Config change setup task FAILED for", entry.Name, err)
			continue
		}
		m.addTask(newTask)
		log.Infoln("Config restarted task", entry.Name)
	}
}

func (m *Manage) tasksUsing(modPath string) []*managed {
	result := make([]*managed, 0)
	for _, mt := range m.tasks {
		if filepath.Clean(mt.configPath) == filepath.Clean(modPath) {
			result = append(result, mt)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].entry.Name < result[j].entry.Name
	})
	return result
}

func (m *Manage) allFinished() bool {
	for _, mt := range m.tasks {
		select {
		case <-mt.task.Done():
		default:
			return false
		}
	}
	return true
}

func (m *Manage) run() {
	defer close(m.done)
	finishTicker := time.NewTicker(time.Second)
	defer finishTicker.Stop()
Loop:
	for {
		select {
		case <-m.stop:
			break Loop
		case <-finishTicker.C:
			if m.allFinished() {
				log.Infoln("All tasks finished")
				break Loop
			}
		case event, ok := <-m.wtr.Events:
			if !ok {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			m.doTaskConfigChanges(event.Name)
		case err, ok := <-m.wtr.Errors:
			if !ok {
				continue
			}
			log.Warnln("Config watcher error", err)
		}
	}
	m.shutdown()
}

func (m *Manage) shutdown() {
	names := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		names = append(names, name)
	}
	for _, name := range names {
		m.tasks[name].task.Stop()
	}
	for _, name := range names {
		m.removeTask(m.tasks[name])
	}
	m.wtr.Close()
	m.hub.Shutdown()
}
