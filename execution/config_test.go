package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"periodic", Periodic, false},
		{"PeriodicExecutionContext", Periodic, false},
		{"external_trigger", ExternalTrigger, false},
		{"ExtTrig", ExternalTrigger, false},
		{" ext_trig ", ExternalTrigger, false},
		{"ExtTrigExecutionContext", ExternalTrigger, false},
		{"realtime", Periodic, true},
		{"", Periodic, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrBadParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigFromProperties(t *testing.T) {
	cfg, err := ConfigFromProperties(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = ConfigFromProperties(config.Properties{
		PropRate:              "250",
		PropSyncTransition:    "no",
		PropTransitionTimeout: "0.1",
		PropStopTimeout:       "5",
	})
	require.NoError(t, err)
	assert.Equal(t, 250.0, cfg.Rate)
	assert.False(t, cfg.SyncTransition)
	assert.Equal(t, 100*time.Millisecond, cfg.TransitionTimeout)
	assert.Equal(t, 5*time.Second, cfg.StopTimeout)
}

func TestConfigFromProperties_Invalid(t *testing.T) {
	for name, props := range map[string]config.Properties{
		"rate not a number": {PropRate: "fast"},
		"zero rate":         {PropRate: "0"},
		"negative rate":     {PropRate: "-10"},
		"bad bool":          {PropSyncTransition: "maybe"},
		"bad timeout":       {PropStopTimeout: "soon"},
		"zero stop timeout": {PropStopTimeout: "0"},
		"sync without wait": {PropTransitionTimeout: "0"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ConfigFromProperties(props)
			assert.Equal(t, errors.BadParameter, errors.Code(err))
		})
	}
}
