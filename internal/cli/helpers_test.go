package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Session logs as the scheduler writes them.
const (
	respondedLog = "CS\t1\t5\nCE\t1\t5.001\nFD\t1\t5.5\nFD\t2\t5.6\nSE\t1\t5.601\n"
	gaveUpLog    = "CS\t1\t5\nCE\t1\t5.001\nCS\t2\t10.001\nCE\t2\t10.002\nCS\t3\t15.002\nCE\t3\t15.003\n" +
		"CS\t4\t20.003\nCE\t4\t20.004\nCS\t5\t25.004\nCE\t5\t25.005\nPS\t1\t30.005\nCE\t6\t30.006\n" +
		"PS\t2\t35.006\nCE\t7\t35.007\nSE\t-1\t40.007\n"
)

// execute runs the root command with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
