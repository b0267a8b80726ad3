package persistence

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameDetectsDamage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.NoError(t, WriteFrame(&buf, []byte("world")))
	raw := buf.Bytes()

	r := bytes.NewReader(raw)
	p, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(p))
	p, err = ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "world", string(p))
	_, err = ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)

	flipped := bytes.Clone(raw)
	flipped[HeaderSize] ^= 0xFF
	_, err = ReadFrame(bytes.NewReader(flipped))
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	badMagic := bytes.Clone(raw)
	badMagic[0] = 0
	_, err = ReadFrame(bytes.NewReader(badMagic))
	assert.ErrorIs(t, err, ErrInvalidMagic)

	_, err = ReadFrame(bytes.NewReader(raw[:HeaderSize+2]))
	assert.ErrorIs(t, err, ErrIncompleteFrame)
	_, err = ReadFrame(bytes.NewReader(raw[:4]))
	assert.ErrorIs(t, err, ErrIncompleteFrame)
}

func collect(t *testing.T, path string) ([]string, *Log) {
	t.Helper()
	var got []string
	l, err := OpenLog(path, func(p []byte) error {
		got = append(got, string(p))
		return nil
	})
	require.NoError(t, err)
	return got, l
}

func TestLogReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "docs.log")

	got, l := collect(t, path)
	assert.Empty(t, got)
	require.NoError(t, l.Append([]byte("a")))
	require.NoError(t, l.Append([]byte("b")))
	assert.Equal(t, 2, l.Records())
	require.NoError(t, l.Close())

	got, l = collect(t, path)
	assert.Equal(t, []string{"a", "b"}, got)
	require.NoError(t, l.Append([]byte("c")))
	require.NoError(t, l.Close())

	got, l = collect(t, path)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	require.NoError(t, l.Close())
}

func TestLogTruncatesTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.log")
	_, l := collect(t, path)
	require.NoError(t, l.Append([]byte("kept")))
	require.NoError(t, l.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{MagicByte, KindRecord, 9, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, l := collect(t, path)
	assert.Equal(t, []string{"kept"}, got)
	require.NoError(t, l.Append([]byte("next")))
	require.NoError(t, l.Close())

	got, l = collect(t, path)
	assert.Equal(t, []string{"kept", "next"}, got)
	require.NoError(t, l.Close())
}

func TestLogRejectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.log")
	require.NoError(t, os.WriteFile(path, []byte("not a log at all"), 0o644))
	_, err := OpenLog(path, func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestLogRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.log")
	_, l := collect(t, path)
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, l.Append([]byte(s)))
	}
	require.NoError(t, l.Rewrite([][]byte{[]byte("c")}))
	assert.Equal(t, 1, l.Records())
	require.NoError(t, l.Append([]byte("d")))
	require.NoError(t, l.Close())

	got, l := collect(t, path)
	assert.Equal(t, []string{"c", "d"}, got)
	require.NoError(t, l.Close())
}
