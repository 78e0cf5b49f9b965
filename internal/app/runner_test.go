package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrollment_sync/internal/domain/campus"
	"enrollment_sync/internal/domain/enrollment"
	"enrollment_sync/internal/domain/period"
)

func threeCampuses() []campus.Campus {
	return []campus.Campus{
		{ID: "1", Name: "campus-1", ScheduledSync: "1"},
		{ID: "2", Name: "campus-2", ScheduledSync: "0"},
		{ID: "3", Name: "campus-3", ScheduledSync: "1"},
	}
}

func testPeriod(t *testing.T) period.Period {
	p, err := period.FromParameters("2024", "1")
	require.NoError(t, err)
	return p
}

func TestRunner_ProviderFailureIsIsolatedToItsCampus(t *testing.T) {
	provider := &fakeProvider{
		records: map[string][]enrollment.Record{
			"1": {{Login: "a"}},
			"3": {{Login: "c1"}, {Login: "c2"}},
		},
		errs: map[string]error{"2": errors.New("connection refused")},
	}
	processor := newRecordingProcessor()
	logger, _ := newTestLogger()
	runner := NewRunner(fakeConfigStore{campuses: threeCampuses()}, provider, processor, testPeriod(t), logger)

	report, err := runner.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, provider.calls)
	assert.Equal(t, []string{"1", "3"}, processor.order)
	assert.Len(t, processor.seen["1"], 1)
	assert.Len(t, processor.seen["3"], 2)

	assert.Equal(t, []string{"campus-1", "campus-2", "campus-3"}, report.Campuses)
	require.Contains(t, report.FailedCampuses, "campus-2")
	assert.Contains(t, report.FailedCampuses["campus-2"], "connection refused")
	assert.Equal(t, 3, report.Stats.Records)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, StateDone, runner.State())
}

func TestRunner_PassesPeriodToProvider(t *testing.T) {
	provider := &fakeProvider{}
	logger, _ := newTestLogger()
	p := testPeriod(t)
	runner := NewRunner(fakeConfigStore{campuses: threeCampuses()[:1]}, provider, newRecordingProcessor(), p, logger)

	_, err := runner.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []period.Period{p}, provider.periods)
}

func TestRunner_ProcessorErrorAndPanicAreIsolated(t *testing.T) {
	provider := &fakeProvider{}
	processor := newRecordingProcessor()
	processor.errFor = map[string]error{"1": errors.New("bad batch")}
	processor.panicFor = map[string]bool{"2": true}
	logger, _ := newTestLogger()
	runner := NewRunner(fakeConfigStore{campuses: threeCampuses()}, provider, processor, testPeriod(t), logger)

	report, err := runner.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "3"}, processor.order)
	assert.Len(t, report.FailedCampuses, 2)
	assert.Contains(t, report.FailedCampuses["campus-2"], "panic")
	assert.True(t, report.HasFailures())
}

func TestRunner_CampusListFailureIsFatal(t *testing.T) {
	logger, _ := newTestLogger()
	runner := NewRunner(fakeConfigStore{err: errors.New("clients file missing")}, &fakeProvider{}, newRecordingProcessor(), testPeriod(t), logger)

	report, err := runner.Sync(context.Background())
	assert.Error(t, err)
	assert.Nil(t, report)
}

func TestRunner_StopsStartingCampusesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	provider := &fakeProvider{}
	logger, _ := newTestLogger()
	runner := NewRunner(fakeConfigStore{campuses: threeCampuses()}, provider, newRecordingProcessor(), testPeriod(t), logger)

	report, err := runner.Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, provider.calls)
	assert.Empty(t, report.Campuses)
}
