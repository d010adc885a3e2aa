package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dwsmith1983/factcorpus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestWriterFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	w, err := Open(path)
	require.NoError(t, err)
	loc := time.FixedZone("CEST", 2*3600)
	w.now = fixedClock(time.Date(2020, 3, 1, 14, 5, 9, 0, loc))

	require.NoError(t, w.StartCompile("17"))
	require.NoError(t, w.Error("17", "error: linking failed,\nsee log"))
	require.NoError(t, w.StartCompile("18"))
	require.NoError(t, w.EndCompile("18"))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"2020-03-01 12:05:09,START_COMPILE,17",
		"2020-03-01 12:05:09,ERROR,17,error: linking failed; see log",
		"2020-03-01 12:05:09,START_COMPILE,18",
		"2020-03-01 12:05:09,END_COMPILE,18",
	}, "\n")+"\n", string(data))
}

func TestWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	for _, id := range []string{"1", "2"} {
		w, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, w.StartCompile(id))
		require.NoError(t, w.EndCompile(id))
		require.NoError(t, w.Close())
	}

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, "2", records[3].ID)
}

func TestWriteAfterClose(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "run.log"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Error(t, w.StartCompile("1"))
}

func TestReadLegacyError(t *testing.T) {
	log := "2019-11-02 10:00:00,START_COMPILE,5\n" +
		"2019-11-02 10:20:00,ERROR,Command timed out\n"
	records, err := Read(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, types.EventError, records[1].Event)
	assert.Equal(t, "", records[1].ID)
	assert.Equal(t, "Command timed out", records[1].Message)
	assert.Equal(t, time.Date(2019, 11, 2, 10, 20, 0, 0, time.UTC), records[1].Time)

	s := Summarize(records)
	assert.Equal(t, "Command timed out", s.Failed["5"])
	assert.Empty(t, s.InFlight)
	assert.NoError(t, CheckOrdering(records))
}

func TestReadRejectsGarbage(t *testing.T) {
	tests := []string{
		"hello\n",
		"2019-11-02,START_COMPILE,1\n",
		"2019-11-02 10:00:00,FINISH,1\n",
		"2019-11-02 10:00:00,START_COMPILE,\n",
		"2019-11-02 10:00:00,END_COMPILE,1,extra\n",
	}
	for _, log := range tests {
		_, err := Read(strings.NewReader(log))
		assert.Error(t, err, log)
	}
}

func TestReadFileMissing(t *testing.T) {
	records, err := ReadFile(filepath.Join(t.TempDir(), "absent.log"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSummarize(t *testing.T) {
	log := strings.Join([]string{
		"2020-01-01 00:00:00,START_COMPILE,a",
		"2020-01-01 00:00:01,END_COMPILE,a",
		"2020-01-01 00:00:02,START_COMPILE,b",
		"2020-01-01 00:00:03,ERROR,b,timeout",
		"2020-01-01 00:00:04,START_COMPILE,c",
		"2020-01-01 00:00:05,ERROR,c,exit 101",
		"2020-01-01 00:00:06,START_COMPILE,c",
		"2020-01-01 00:00:07,END_COMPILE,c",
		"2020-01-01 00:00:08,START_COMPILE,d",
	}, "\n")
	records, err := Read(strings.NewReader(log))
	require.NoError(t, err)

	s := Summarize(records)
	assert.Equal(t, map[string]bool{"a": true, "c": true}, s.Finished)
	assert.Equal(t, map[string]string{"b": "timeout"}, s.Failed)
	assert.Equal(t, 2, s.Attempts["c"])
	assert.Equal(t, "d", s.InFlight)
	assert.Equal(t, "c", s.LastCompleted)
	assert.NoError(t, CheckOrdering(records))
}

func TestCheckOrdering(t *testing.T) {
	tests := []struct {
		name string
		log  []string
		ok   bool
	}{
		{"empty", nil, true},
		{"pairs", []string{"START_COMPILE,1", "END_COMPILE,1", "START_COMPILE,2", "ERROR,2,x"}, true},
		{"open tail", []string{"START_COMPILE,1", "END_COMPILE,1", "START_COMPILE,2"}, true},
		{"interleaved start", []string{"START_COMPILE,1", "START_COMPILE,2", "END_COMPILE,1"}, false},
		{"foreign end", []string{"START_COMPILE,1", "END_COMPILE,2"}, false},
		{"end without start", []string{"END_COMPILE,1"}, false},
		{"double end", []string{"START_COMPILE,1", "END_COMPILE,1", "END_COMPILE,1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			for _, l := range tt.log {
				b.WriteString("2020-01-01 00:00:00," + l + "\n")
			}
			records, err := Read(strings.NewReader(b.String()))
			require.NoError(t, err)
			err = CheckOrdering(records)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a; b c", Sanitize(" a, b\r\nc\n"))
}
