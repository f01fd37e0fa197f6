package notify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Success("3 tasks rescheduled")
	r.Error("1 task failed: report")

	want := []Message{
		{Kind: KindSuccess, Text: "3 tasks rescheduled"},
		{Kind: KindError, Text: "1 task failed: report"},
	}
	assert.Equal(t, want, r.Messages())

	msgs := r.Messages()
	msgs[0].Text = "changed"
	assert.Equal(t, want, r.Messages(), "Messages returns a copy")

	assert.Equal(t, want, r.Drain())
	assert.Empty(t, r.Messages())
	assert.Empty(t, r.Drain())
}

func TestRecorderConcurrent(t *testing.T) {
	r := &Recorder{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Success("ok")
		}()
	}
	wg.Wait()
	assert.Len(t, r.Messages(), 50)
}

func TestTee(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	var sink Sink = Tee{a, Discard{}, b}

	sink.Success("saved")
	sink.Error("failed")

	assert.Equal(t, a.Messages(), b.Messages())
	assert.Len(t, a.Messages(), 2)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	sink := Log{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	sink.Success("task completed")
	sink.Error("task not found")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "task completed", first["msg"])
	assert.Equal(t, "success", first["kind"])
	assert.Equal(t, "ERROR", second["level"])
	assert.Equal(t, "error", second["kind"])
}

func TestLogDefaultsToSlogDefault(t *testing.T) {
	assert.NotPanics(t, func() {
		Log{}.Success("no logger configured")
	})
}
