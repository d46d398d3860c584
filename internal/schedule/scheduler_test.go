package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
)

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := New(config.ScheduleConfig{Spec: "not a cron spec"}, nil, nil)
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule spec")
}

func TestStartStopValidSpec(t *testing.T) {
	s := New(config.ScheduleConfig{Spec: "0 30 16 * * 1-5"}, nil, nil)
	require.NoError(t, s.Start())
	s.Stop()
}
