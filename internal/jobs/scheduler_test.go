package jobs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmang24/si-opportunity-manager/internal/jobs"
	"go.uber.org/zap"
)

func TestScheduler_AddRemove(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob("hourly", "@hourly", func() {}))
	require.NoError(t, s.AddJob("nightly", "0 3 * * *", func() {}))
	require.NoError(t, s.AddJob("seconds", "*/30 * * * * *", func() {}))
	assert.ElementsMatch(t, []string{"hourly", "nightly", "seconds"}, s.GetJobNames())

	t.Run("duplicate name", func(t *testing.T) {
		assert.Error(t, s.AddJob("hourly", "@daily", func() {}))
	})

	t.Run("invalid expression", func(t *testing.T) {
		assert.Error(t, s.AddJob("broken", "every tuesday", func() {}))
		assert.NotContains(t, s.GetJobNames(), "broken")
	})

	require.NoError(t, s.RemoveJob("hourly"))
	assert.Error(t, s.RemoveJob("hourly"))
	assert.ElementsMatch(t, []string{"nightly", "seconds"}, s.GetJobNames())

	s.Start()
	<-s.Stop().Done()
}
