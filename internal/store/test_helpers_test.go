package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/rtn/internal/testutil"
)

// createTestStore creates a new store with sequential session IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDGenerator("")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// writeLog writes a session log file named like the scheduler names them.
func writeLog(t *testing.T, dir, base, content string) string {
	t.Helper()
	path := filepath.Join(dir, base)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

const gaveUpLog = "CS\t1\t5\nCE\t1\t5.001\nCS\t2\t10\nCE\t2\t10.001\nCS\t3\t15\nCE\t3\t15.001\n" +
	"CS\t4\t20\nCE\t4\t20.001\nCS\t5\t25\nCE\t5\t25.001\nPS\t1\t30\nCE\t6\t30.001\n" +
	"PS\t2\t35\nCE\t7\t35.001\nSE\t-1\t40\n"

const respondedLog = "CS\t1\t5\nCE\t1\t5.001\nSC\t1\t5.2\nSF\t[0.25,7]\t5.201\n" +
	"FD\t1\t5.5\nFD\t2\t5.6\nSE\t1\t5.601\n"
