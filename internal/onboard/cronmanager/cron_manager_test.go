package cronmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJobs(t *testing.T) {
	registry := JobRegistry{
		"noop": {Func: func() {}, Schedule: "@daily"},
	}

	cm := NewCronManager(registry)
	require.NoError(t, cm.LoadJobs())
	assert.Len(t, cm.jobs, 1)

	// Reload replaces the schedule instead of stacking entries.
	require.NoError(t, cm.LoadJobs())
	assert.Len(t, cm.jobs, 1)
}

func TestLoadJobsBadSchedule(t *testing.T) {
	cm := NewCronManager(JobRegistry{
		"broken": {Func: func() {}, Schedule: "not-a-schedule"},
	})
	assert.Error(t, cm.LoadJobs())
}
