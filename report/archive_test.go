package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/gzip"
	"github.com/jonoton/vigil/stage"
)

func TestFinalArchivedWithoutBroker(t *testing.T) {
	directory := filepath.Join(t.TempDir(), "summaries")
	r := NewReporter(&Config{Archive: directory}, "front", log.WithField("session", "s1"))
	s := NewFinalSummary("s1", "front", stage.FrameTime{EpochMs: 5000}, 10, 2, trackedResult())
	if r.Final(s) {
		t.Fatalf("Final published without broker\n")
	}
	data, err := os.ReadFile(filepath.Join(directory, "front-s1.json.gz"))
	if err != nil {
		t.Fatal(err)
	}
	payload, header, err := gzip.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if header == nil || header.Name != "front-s1.json" {
		t.Fatalf("header = %v, expected name front-s1.json\n", header)
	}
	var decoded FinalSummary
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Frames != 10 || decoded.Skipped != 2 {
		t.Fatalf("decoded frames %d skipped %d, expected 10 2\n", decoded.Frames, decoded.Skipped)
	}
}
