package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_ValidTimezone(t *testing.T) {
	s, err := New("America/New_York", nil)
	require.NoError(t, err)
	defer s.Stop()
	assert.Equal(t, "America/New_York", s.location.String())
}

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Invalid/Zone", nil)
	assert.Error(t, err)
}

func TestSchedule(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.Schedule("@every 15m", func() {}))
	assert.Equal(t, "@every 15m", s.Spec())

	require.NoError(t, s.Schedule("30 6 * * 1-5", func() {}))
	assert.Equal(t, "30 6 * * 1-5", s.Spec())
}

func TestSchedule_Invalid(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)
	defer s.Stop()

	assert.Error(t, s.Schedule("every now and then", func() {}))
	assert.Equal(t, "", s.Spec())
}

func TestSchedule_Replaces(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.Schedule("@every 1h", func() {}))
	first := s.entryID
	require.NoError(t, s.Schedule("@every 2h", func() {}))

	assert.NotEqual(t, first, s.entryID)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestUnschedule(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.Schedule("@every 1h", func() {}))
	s.Unschedule()
	assert.Empty(t, s.cron.Entries())
	assert.True(t, s.Next().IsZero())
}

func TestNext(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)
	require.NoError(t, s.Schedule("@every 1h", func() {}))

	s.Start()
	defer s.Stop()

	next := s.Next()
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, 5*time.Second)
}

func TestRun_ExecutesTaskUntilCancelled(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s, err := New("UTC", zap.New(core))
	require.NoError(t, err)

	var count atomic.Int64
	require.NoError(t, s.Schedule("@every 1s", func() { count.Add(1) }))
	assert.Equal(t, 1, logs.FilterMessage("probe scheduled").Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return count.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestRun_RecoversPanickingTask(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s, err := New("UTC", zap.New(core))
	require.NoError(t, err)
	require.NoError(t, s.Schedule("@every 1s", func() { panic("boom") }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return logs.FilterMessage("cron: panic").Len() > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	<-done
}
