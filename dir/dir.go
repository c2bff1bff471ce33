package dir

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// RegexNameWithExt returns the regex of name followed by one of exts
func RegexNameWithExt(name string, exts ...string) string {
	quoted := make([]string, 0, len(exts))
	for _, ext := range exts {
		quoted = append(quoted, regexp.QuoteMeta(strings.TrimPrefix(ext, ".")))
	}
	return fmt.Sprintf("^(%s)\\.(%s)$", regexp.QuoteMeta(name), strings.Join(quoted, "|"))
}

// RegexBeginsWith returns the string regex
func RegexBeginsWith(val string) string {
	return fmt.Sprintf("^(%s).*$", regexp.QuoteMeta(val))
}

// List returns the paths of files directly in path whose name matches regex, sorted by name.
// An empty regex matches every file.
func List(path string, regex string) ([]string, error) {
	result := make([]string, 0)
	isDesire := regexp.MustCompile(regex)
	entries, err := os.ReadDir(path)
	if err != nil {
		return result, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if matched := isDesire.MatchString(entry.Name()); matched || len(regex) == 0 {
			result = append(result, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(result)
	return result, nil
}

// Ensure creates path and its parents
func Ensure(path string) error {
	return os.MkdirAll(path, 0755)
}

// WriteAtomic writes data to a temporary file next to path then renames it over path
func WriteAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// BytesToMegaBytes converts Bytes to MegaBytes
func BytesToMegaBytes(in uint64) float64 {
	return float64(in) / 1000 / 1000
}
