package report

import (
	"path/filepath"
	"time"

	"github.com/jonoton/vigil/dir"
	"github.com/jonoton/vigil/gzip"
)

// ArchiveName returns the file name of an archived final summary
func ArchiveName(s FinalSummary) string {
	return s.Task + "-" + s.Session + ".json.gz"
}

// Archive writes s gzipped into directory and returns the file path
func Archive(directory string, s FinalSummary) (string, error) {
	payload, err := Encode(s)
	if err != nil {
		return "", err
	}
	name := ArchiveName(s)
	data, err := gzip.Encode(payload, &gzip.Header{
		Name:    name[:len(name)-len(".gz")],
		Comment: "vigil final summary",
		Date:    time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	if err := dir.Ensure(directory); err != nil {
		return "", err
	}
	path := filepath.Join(directory, name)
	return path, dir.WriteAtomic(path, data)
}
