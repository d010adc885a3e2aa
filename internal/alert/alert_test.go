package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

func testAlert() types.Alert {
	return types.Alert{
		Level:     types.AlertLevelError,
		JobID:     "01JOB",
		RunID:     "run-1",
		EntryID:   "serde-1.0.0",
		Package:   "serde",
		Version:   "1.0.0",
		Outcome:   types.OutcomeCompilerError,
		Message:   "error[E0425]: cannot find value",
		Timestamp: time.Date(2026, 2, 22, 10, 0, 0, 0, time.UTC),
	}
}

func TestConsoleSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := &ConsoleSink{w: &buf}
	assert.Equal(t, "console", sink.Name())

	ctx := context.Background()
	for _, level := range []types.AlertLevel{types.AlertLevelError, types.AlertLevelWarning, types.AlertLevelInfo} {
		a := testAlert()
		a.Level = level
		require.NoError(t, sink.Send(ctx, a))
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[serde-1.0.0] 01JOB COMPILER_ERROR")
}

func TestFileSink_Send(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts", "alerts.jsonl")

	sink, err := NewFileSink(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	assert.Equal(t, "file", sink.Name())

	alert := testAlert()
	require.NoError(t, sink.Send(context.Background(), alert))
	require.NoError(t, sink.Send(context.Background(), alert))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	var got types.Alert
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, alert.Message, got.Message)
	assert.Equal(t, alert.EntryID, got.EntryID)
}

func TestFileSink_SendAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	d := NewDispatcherWithSinks(nil, sink, NewConsoleSink())
	require.NoError(t, d.Close())
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Send(context.Background(), testAlert()), ErrSinkClosed)
}

type mockEventBridge struct {
	inputs []*eventbridge.PutEventsInput
	out    *eventbridge.PutEventsOutput
	err    error
}

func (m *mockEventBridge) PutEvents(_ context.Context, input *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	if m.out != nil {
		return m.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestEventBridgeSink_Send(t *testing.T) {
	mock := &mockEventBridge{}
	sink, err := NewEventBridgeSink(context.Background(), "corpus-alerts", WithEventBridgeClient(mock))
	require.NoError(t, err)
	assert.Equal(t, "eventbridge", sink.Name())

	alert := testAlert()
	require.NoError(t, sink.Send(context.Background(), alert))

	require.Len(t, mock.inputs, 1)
	require.Len(t, mock.inputs[0].Entries, 1)
	entry := mock.inputs[0].Entries[0]
	assert.Equal(t, "corpus-alerts", *entry.EventBusName)
	assert.Equal(t, EventSource, *entry.Source)
	assert.Equal(t, EventDetailType, *entry.DetailType)
	assert.Equal(t, []string{"serde-1.0.0"}, entry.Resources)

	var decoded types.Alert
	require.NoError(t, json.Unmarshal([]byte(*entry.Detail), &decoded))
	assert.Equal(t, types.OutcomeCompilerError, decoded.Outcome)
	assert.Equal(t, "01JOB", decoded.JobID)
}

func TestEventBridgeSink_Rejected(t *testing.T) {
	mock := &mockEventBridge{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []ebtypes.PutEventsResultEntry{{
			ErrorCode:    aws.String("InternalFailure"),
			ErrorMessage: aws.String("try again"),
		}},
	}}
	sink, err := NewEventBridgeSink(context.Background(), "bus", WithEventBridgeClient(mock))
	require.NoError(t, err)

	err = sink.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InternalFailure")
}

func TestEventBridgeSink_ClientError(t *testing.T) {
	boom := errors.New("no credentials")
	sink, err := NewEventBridgeSink(context.Background(), "bus", WithEventBridgeClient(&mockEventBridge{err: boom}))
	require.NoError(t, err)
	assert.ErrorIs(t, sink.Send(context.Background(), testAlert()), boom)
}

func TestEventBridgeSink_EmptyBus(t *testing.T) {
	_, err := NewEventBridgeSink(context.Background(), "")
	assert.Error(t, err)
}

// errSink is a test sink that always returns an error.
type errSink struct{}

func (s *errSink) Send(_ context.Context, _ types.Alert) error { return fmt.Errorf("sink error") }
func (s *errSink) Name() string                                { return "error-sink" }

// recordSink records all alerts sent to it.
type recordSink struct {
	alerts []types.Alert
}

func (s *recordSink) Send(_ context.Context, a types.Alert) error {
	s.alerts = append(s.alerts, a)
	return nil
}
func (s *recordSink) Name() string { return "record-sink" }

func TestDispatcher_MultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	d := NewDispatcherWithSinks(nil, s1, s2)
	assert.Equal(t, 2, d.Len())

	alert := testAlert()
	d.Dispatch(context.Background(), alert)

	assert.Len(t, s1.alerts, 1)
	assert.Len(t, s2.alerts, 1)
	assert.Equal(t, alert.Message, s1.alerts[0].Message)
}

func TestDispatcher_SinkError_ContinuesOthers(t *testing.T) {
	var logs bytes.Buffer
	recording := &recordSink{}
	d := NewDispatcherWithSinks(slog.New(slog.NewTextHandler(&logs, nil)), &errSink{}, recording)

	d.Dispatch(context.Background(), testAlert())

	// Even though first sink failed, second should have received the alert
	assert.Len(t, recording.alerts, 1)
	assert.Contains(t, logs.String(), "sink=error-sink")
}

func TestNewDispatcher_FromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	d, err := NewDispatcher(context.Background(), []types.AlertConfig{
		{Type: types.AlertConsole},
		{Type: types.AlertFile, Path: path},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	_, err = NewDispatcher(context.Background(), []types.AlertConfig{{Type: types.AlertFile}}, nil)
	assert.Error(t, err)

	_, err = NewDispatcher(context.Background(), []types.AlertConfig{{Type: "pager"}}, nil)
	assert.Error(t, err)
}
