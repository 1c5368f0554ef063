package sessionlog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/testutil"
)

func openTestLog(t *testing.T) (*Log, *testutil.FakeClock, string) {
	t.Helper()
	clk := testutil.NewFakeClock(time.Time{})
	l := New(clk)
	path := filepath.Join(t.TempDir(), "logs", "session.txt")
	require.NoError(t, l.Open(path, clk.Now()))
	t.Cleanup(func() { l.Close() })
	return l, clk, path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.SplitAfter(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestAppend_WritesTabSeparatedLine(t *testing.T) {
	l, clk, path := openTestLog(t)

	clk.Advance(5 * time.Second)
	rec, err := l.Append(ir.TagCallStarted, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, 5*time.Second, rec.Elapsed)

	clk.Advance(250 * time.Millisecond)
	_, err = l.Append(ir.TagCallEnded, 1)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CS\t1\t5\nCE\t1\t5.25\n", string(data))
}

func TestAppend_StrictlyIncreasingElapsed(t *testing.T) {
	l, clk, path := openTestLog(t)

	clk.Advance(5 * time.Second)
	_, err := l.Append(ir.TagCallStarted, 1)
	require.NoError(t, err)

	// Same instant: stamped 1ms later
	rec, err := l.Append(ir.TagCallEnded, 1)
	require.NoError(t, err)
	assert.Equal(t, 5001*time.Millisecond, rec.Elapsed)

	rec, err = l.Append(ir.TagFaceDetected, 1)
	require.NoError(t, err)
	assert.Equal(t, 5002*time.Millisecond, rec.Elapsed)
	require.NoError(t, l.Close())

	records, err := ReadFile(path)
	require.NoError(t, err)
	assert.NoError(t, Validate(records))
}

func TestAppendRaw_RendersPayload(t *testing.T) {
	l, clk, path := openTestLog(t)

	clk.Advance(1500 * time.Millisecond)
	rec, err := l.AppendRaw(ir.TagSoundFeatures, ir.NewArray(ir.Float(0.5), ir.Int(3)))
	require.NoError(t, err)
	assert.True(t, rec.IsRaw)
	require.NoError(t, l.Close())

	assert.Equal(t, []string{"SF\t[0.5,3]\t1.5\n"}, readLines(t, path))
}

func TestAppend_AfterClose(t *testing.T) {
	l, _, _ := openTestLog(t)
	require.NoError(t, l.Close())

	_, err := l.Append(ir.TagFaceDetected, 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, l.IsOpen())
}

func TestClose_Idempotent(t *testing.T) {
	l := New(nil)
	assert.NoError(t, l.Close())

	l, _, _ = openTestLog(t)
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}

func TestOpen_RejectsDoubleOpen(t *testing.T) {
	l, clk, path := openTestLog(t)
	err := l.Open(path, clk.Now())
	assert.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestOpen_ResetsSequenceAndStamps(t *testing.T) {
	l, clk, _ := openTestLog(t)
	clk.Advance(10 * time.Second)
	_, err := l.Append(ir.TagCallStarted, 1)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	second := filepath.Join(t.TempDir(), "second.txt")
	require.NoError(t, l.Open(second, clk.Now()))
	assert.Equal(t, second, l.Path())
	assert.Equal(t, int64(0), l.Records())

	rec, err := l.Append(ir.TagCallStarted, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, time.Duration(0), rec.Elapsed)
}

func TestOpen_InvalidPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	l := New(nil)
	err := l.Open(filepath.Join(blocker, "sub", "log.txt"), time.Now())
	assert.Error(t, err)
	assert.False(t, l.IsOpen())
}

func TestAppend_ConcurrentWritersNeverInterleave(t *testing.T) {
	l, clk, path := openTestLog(t)
	const writers = 20
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				clk.Advance(time.Millisecond)
				_, err := l.Append(ir.TagFaceDetected, int64(w))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, l.Close())

	records, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, records, writers*perWriter)
	assert.NoError(t, Validate(records))
	for _, r := range records {
		assert.Equal(t, ir.TagFaceDetected, r.Tag)
	}
}

func TestFileName(t *testing.T) {
	ts := time.Date(2014, time.April, 2, 9, 5, 7, 0, time.UTC)
	got := FileName("/var/log/rtn", "ResponseToName", ts)
	assert.Equal(t, filepath.Join("/var/log/rtn", "2014_4_2_090507_ResponseToName.txt"), got)
}

func TestParseFileName(t *testing.T) {
	ts := time.Date(2014, time.December, 24, 18, 0, 59, 0, time.UTC)
	name, got, err := ParseFileName(FileName("logs", "Response_To_Name", ts), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Response_To_Name", name)
	assert.True(t, ts.Equal(got))

	for _, bad := range []string{"session.txt", "2014_4_2_ResponseToName.txt", "2014_13_2_103000_x.txt", "2014_4_2_103000_.txt"} {
		_, _, err := ParseFileName(bad, time.UTC)
		assert.Error(t, err, bad)
	}
}
