package publish

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/printbridge/component"
	"github.com/c360/printbridge/errors"
	"github.com/c360/printbridge/telemetry"
)

type stubConn struct {
	subject string
	data    []byte
	err     error
	calls   int
}

func (s *stubConn) Publish(_ context.Context, subject string, data []byte) error {
	s.calls++
	s.subject = subject
	s.data = data
	return s.err
}

func TestPublishSendsSnapshotJSON(t *testing.T) {
	conn := &stubConn{}
	publisher := NewNATSPublisher("printer.status", component.Dependencies{})
	publisher.conn = conn

	snapshot := telemetry.Snapshot{
		Progress: 42.5,
		Layer:    10,
		Filename: "benchy.gcode",
	}

	require.NoError(t, publisher.Publish(context.Background(), snapshot))
	assert.Equal(t, 1, conn.calls)
	assert.Equal(t, "printer.status", conn.subject)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &decoded))
	assert.Equal(t, 42.5, decoded["progress"])
	assert.Equal(t, "benchy.gcode", decoded["filename"])
}

func TestPublishFailureIsTransient(t *testing.T) {
	conn := &stubConn{err: stderrors.New("connection refused")}
	publisher := NewNATSPublisher("printer.status", component.Dependencies{})
	publisher.conn = conn

	err := publisher.Publish(context.Background(), telemetry.Snapshot{})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestPublishWithoutClientFailsFast(t *testing.T) {
	publisher := NewNATSPublisher("printer.status", component.Dependencies{})

	err := publisher.Publish(context.Background(), telemetry.Snapshot{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoConnection)
	assert.True(t, errors.IsTransient(err))
}

func TestSubject(t *testing.T) {
	publisher := NewNATSPublisher("printer.custom", component.Dependencies{})
	assert.Equal(t, "printer.custom", publisher.Subject())
}
