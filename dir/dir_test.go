package dir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestList(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"tracker.yaml", "detector.yml", "detector.yaml.bak", "frame_capture.yaml"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile error %v\n", err)
		}
	}
	os.Mkdir(filepath.Join(root, "detector.yaml"), 0755)
	files, err := List(root, RegexNameWithExt("detector", "yaml", ".yml"))
	if err != nil {
		t.Fatalf("List error %v\n", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "detector.yml" {
		t.Fatalf("List = %v, expected [detector.yml]\n", files)
	}
	all, _ := List(root, "")
	if len(all) != 4 {
		t.Fatalf("List all = %d files, expected 4\n", len(all))
	}
	if _, err := List(filepath.Join(root, "missing"), ""); err == nil {
		t.Fatalf("List of a missing directory succeeded\n")
	}
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.yaml")
	if err := WriteAtomic(path, []byte("first")); err != nil {
		t.Fatalf("WriteAtomic error %v\n", err)
	}
	if err := WriteAtomic(path, []byte("second")); err != nil {
		t.Fatalf("WriteAtomic error %v\n", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Fatalf("contents = %q, expected second\n", data)
	}
	left, _ := List(filepath.Dir(path), "")
	if len(left) != 1 {
		t.Fatalf("temporary files left behind %v\n", left)
	}
}
