package prof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSessionWritesHeapProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.pprof")
	s, err := Start(Options{MemProfile: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("empty heap profile")
	}
}

func TestStartReportsBadPath(t *testing.T) {
	_, err := Start(Options{CPUProfile: filepath.Join(t.TempDir(), "missing", "cpu.pprof")})
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
}
