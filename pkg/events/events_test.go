package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/casa-azul-api/pkg/config"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestNATSPublisherPublish(t *testing.T) {
	c := &fakeConn{}
	p := newNATSPublisher(c, "casa_azul", zap.NewNop())
	fixed := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	err := p.Publish(context.Background(), EnrollmentCreated, "user-1", map[string]string{"enrollment_id": "e-1"})
	require.NoError(t, err)
	assert.Equal(t, "casa_azul.enrollment.created", c.subject)

	var evt struct {
		Type       string            `json:"type"`
		ActorID    string            `json:"actor_id"`
		OccurredAt time.Time         `json:"occurred_at"`
		Payload    map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(c.data, &evt))
	assert.Equal(t, EnrollmentCreated, evt.Type)
	assert.Equal(t, "user-1", evt.ActorID)
	assert.True(t, fixed.Equal(evt.OccurredAt))
	assert.Equal(t, "e-1", evt.Payload["enrollment_id"])

	require.NoError(t, p.Close())
	assert.True(t, c.drained)
}

func TestNATSPublisherPropagatesError(t *testing.T) {
	c := &fakeConn{err: errors.New("nats: connection closed")}
	p := newNATSPublisher(c, "", nil)
	p.logger = zap.NewNop()

	err := p.Publish(context.Background(), GradesRecorded, "", nil)
	require.Error(t, err)
	assert.Equal(t, "grades.recorded", c.subject)
}

func TestNewWithoutURLIsNop(t *testing.T) {
	p, err := New(config.EventsConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), AttendanceTaken, "", nil))
}
