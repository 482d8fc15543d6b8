package component

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name        string
		pub         LogPublisher
		prefix      string
		wantEnabled bool
		wantSubject string
	}{
		{"with publisher", &capturePublisher{}, "", true, "rtkit.logs.camera"},
		{"custom prefix", &capturePublisher{}, "site1.logs", true, "site1.logs.camera"},
		{"without publisher", nil, "", false, "rtkit.logs.camera"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := NewLogger("camera", tt.pub, tt.prefix, nil)
			assert.Equal(t, tt.wantEnabled, cl.enabled)
			assert.Equal(t, tt.wantSubject, cl.Subject())
			assert.NotNil(t, cl.Slog())
		})
	}
}

func TestLogger_PublishesEntries(t *testing.T) {
	var local bytes.Buffer
	pub := &capturePublisher{}
	cl := NewLogger("camera", pub, "", slog.New(slog.NewTextHandler(&local, nil)))

	cl.Info("frame grabbed")
	cl.Warn("frame late")
	cl.Error("grab failed", stderrors.New("timeout"))
	cl.ContextError(context.Background(), "ec0", "execute failed", stderrors.New("bad frame"))

	require.Len(t, pub.payloads, 4)
	for _, s := range pub.subjects {
		assert.Equal(t, "rtkit.logs.camera", s)
	}

	var entry LogEntry
	require.NoError(t, json.Unmarshal(pub.payloads[2], &entry))
	assert.Equal(t, LogLevelError, entry.Level)
	assert.Equal(t, "camera", entry.Component)
	assert.Equal(t, "grab failed", entry.Message)
	assert.Equal(t, "timeout", entry.Error)
	assert.NotEmpty(t, entry.Timestamp)

	require.NoError(t, json.Unmarshal(pub.payloads[3], &entry))
	assert.Equal(t, "ec0", entry.Context)

	assert.Contains(t, local.String(), "component=camera")
	assert.Contains(t, local.String(), "frame late")
}

func TestLogger_DebugBelowLevelStillPublished(t *testing.T) {
	pub := &capturePublisher{}
	cl := NewLogger("camera", pub, "", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	cl.Debug("noisy")
	assert.Len(t, pub.payloads, 1)
}

func TestLogger_PublishFailureIsSwallowed(t *testing.T) {
	pub := &capturePublisher{err: stderrors.New("not connected")}
	cl := NewLogger("camera", pub, "", nil)
	assert.NotPanics(t, func() { cl.Error("boom", nil) })
	assert.Len(t, pub.payloads, 1)
}

func TestLogger_CancelledContextSkipsPublish(t *testing.T) {
	pub := &capturePublisher{}
	cl := NewLogger("camera", pub, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cl.ContextError(ctx, "ec0", "late", nil)
	assert.Empty(t, pub.payloads)
}
