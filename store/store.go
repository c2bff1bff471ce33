// store package

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/bundle"
	"github.com/jonoton/vigil/dir"
	"github.com/jonoton/vigil/stage"
)

// ErrNoRecord is returned when a stage has no record file
var ErrNoRecord = errors.New("no stage record")

// RecordExt is the extension written for new records
const RecordExt = "yaml"

var recordExts = []string{"yaml", "yml"}

// CoreDirectory returns the folder holding the stage records of a selection
func CoreDirectory(root string, selection bundle.Selection) string {
	return filepath.Join(root, selection.Project,
		"cameras", selection.Camera,
		"users", selection.User,
		"tasks", selection.Task,
		"core")
}

// FileStore keeps one yaml record per stage in a directory
type FileStore struct {
	Directory string
}

// NewFileStore creates a new FileStore for the selection below root
func NewFileStore(root string, selection bundle.Selection) *FileStore {
	return &FileStore{
		Directory: CoreDirectory(root, selection),
	}
}

// Path returns the record file of stageName, existing or not
func (f *FileStore) Path(stageName string) string {
	files, err := dir.List(f.Directory, dir.RegexNameWithExt(stageName, recordExts...))
	if err == nil && len(files) > 0 {
		return files[0]
	}
	return filepath.Join(f.Directory, stageName+"."+RecordExt)
}

// StageOf returns the stage a record file belongs to
func StageOf(path string) (string, bool) {
	base := filepath.Base(path)
	for _, name := range stage.Sequence {
		for _, ext := range recordExts {
			if base == name+"."+ext {
				return name, true
			}
		}
	}
	return "", false
}

// Load implements bundle.RecordStore
func (f *FileStore) Load(stageName string) (stage.Record, error) {
	path := f.Path(stageName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return stage.Record{}, fmt.Errorf("%w: %s", ErrNoRecord, path)
	}
	if err != nil {
		return stage.Record{}, err
	}
	record, err := stage.UnmarshalRecord(data)
	if err != nil {
		return stage.Record{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if record.Identity.IsZero() {
		return stage.Record{}, fmt.Errorf("%s names no implementation", path)
	}
	return record, nil
}

// Save implements bundle.RecordStore
func (f *FileStore) Save(stageName string, record stage.Record) error {
	data, err := record.Marshal()
	if err != nil {
		return err
	}
	if err := dir.Ensure(f.Directory); err != nil {
		return err
	}
	return dir.WriteAtomic(f.Path(stageName), data)
}

// Ensure writes the given records for every stage that has no record file yet
func (f *FileStore) Ensure(records map[string]stage.Record) (created []string, err error) {
	created = make([]string, 0)
	for _, name := range stage.Sequence {
		record, found := records[name]
		if !found {
			continue
		}
		if _, statErr := os.Stat(f.Path(name)); statErr == nil {
			continue
		}
		if err = f.Save(name, record); err != nil {
			return
		}
		log.Infoln("Created", name, "record", f.Path(name))
		created = append(created, name)
	}
	return
}
