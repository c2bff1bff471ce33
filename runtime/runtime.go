package runtime

import (
	"go/build"
	"os"
	"path/filepath"
)

// ProjectDirectory is the develop project directory
var ProjectDirectory = "/src/github.com/jonoton/vigil"

// Runtime sub directories
const (
	ConfigDirectory = ".config"
	LogsDirectory   = ".logs"
)

func candidates(subDir string) []string {
	executableDirectory, _ := filepath.Abs(filepath.Dir(os.Args[0]))
	return []string{
		filepath.Join(executableDirectory, subDir),
		filepath.Join(build.Default.GOPATH+ProjectDirectory, subDir),
	}
}

// GetRuntimeDirectory returns subDir next to the executable, or in the develop
// tree, with a trailing separator. Empty when neither exists.
func GetRuntimeDirectory(subDir string) string {
	for _, path := range candidates(subDir) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return filepath.Clean(path) + string(filepath.Separator)
		}
	}
	return ""
}

// EnsureRuntimeDirectory returns subDir like GetRuntimeDirectory, creating it next to
// the executable when missing
func EnsureRuntimeDirectory(subDir string) string {
	if path := GetRuntimeDirectory(subDir); path != "" {
		return path
	}
	path := candidates(subDir)[0]
	if err := os.MkdirAll(path, 0755); err != nil {
		return ""
	}
	return filepath.Clean(path) + string(filepath.Separator)
}

// Resolve returns path unchanged when absolute, otherwise relative to the runtime subDir
func Resolve(subDir string, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	base := GetRuntimeDirectory(subDir)
	if base == "" {
		return path
	}
	return filepath.Join(base, path)
}
