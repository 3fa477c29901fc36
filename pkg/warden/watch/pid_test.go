package watch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFile(t *testing.T) {
	t.Parallel()

	t.Run("write and read round trip", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "filewarden.pid")

		if err := WritePIDFile(path); err != nil {
			t.Fatalf("WritePIDFile() error = %v", err)
		}

		pid, err := ReadPIDFile(path)
		if err != nil {
			t.Fatalf("ReadPIDFile() error = %v", err)
		}
		if pid != os.Getpid() {
			t.Errorf("pid = %d, want %d", pid, os.Getpid())
		}
	})

	t.Run("remove deletes the file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "filewarden.pid")

		if err := WritePIDFile(path); err != nil {
			t.Fatalf("WritePIDFile() error = %v", err)
		}
		if err := RemovePIDFile(path); err != nil {
			t.Fatalf("RemovePIDFile() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("PID file still exists after RemovePIDFile()")
		}
	})

	t.Run("missing file is not readable", func(t *testing.T) {
		t.Parallel()
		if _, err := ReadPIDFile(filepath.Join(t.TempDir(), "missing.pid")); err == nil {
			t.Fatal("ReadPIDFile() error = nil, want error")
		}
	})

	t.Run("garbage content is not readable", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.pid")
		if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
			t.Fatalf("writing file: %v", err)
		}
		if _, err := ReadPIDFile(path); err == nil {
			t.Fatal("ReadPIDFile() error = nil, want error")
		}
	})
}

func TestIsRunning(t *testing.T) {
	t.Parallel()

	t.Run("own pid is running", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "filewarden.pid")
		if err := WritePIDFile(path); err != nil {
			t.Fatalf("WritePIDFile() error = %v", err)
		}

		if !IsRunning(path) {
			t.Error("IsRunning() = false for own PID, want true")
		}
	})

	t.Run("missing pid file means not running", func(t *testing.T) {
		t.Parallel()
		if IsRunning(filepath.Join(t.TempDir(), "missing.pid")) {
			t.Error("IsRunning() = true for missing PID file, want false")
		}
	})

	t.Run("stale pid means not running", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "stale.pid")
		// Above pid_max on Linux, so no live process can hold it
		if err := os.WriteFile(path, []byte("99999999"), 0o644); err != nil {
			t.Fatalf("writing file: %v", err)
		}

		if IsRunning(path) {
			t.Error("IsRunning() = true for stale PID, want false")
		}
	})
}
