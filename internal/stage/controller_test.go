package stage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/stagecheck/internal/invariant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAdvanceStage_ListenersFireOnceInOrder(t *testing.T) {
	c := NewController(nil, false)
	var order []string

	require.NoError(t, c.OnStage(Runtime, func() { order = append(order, "runtime-1") }))
	require.NoError(t, c.OnStage(Dynamic, func() { order = append(order, "dynamic-1") }))
	require.NoError(t, c.OnStage(Runtime, func() { order = append(order, "runtime-2") }))

	c.AdvanceStage(Static)
	assert.Empty(t, order)

	c.AdvanceStage(Runtime)
	assert.Equal(t, []string{"runtime-1", "runtime-2"}, order)
	assert.False(t, c.StaticStageEndTime().IsZero())
	assert.True(t, c.RuntimeStageEndTime().IsZero())

	c.AdvanceStage(Dynamic)
	assert.Equal(t, []string{"runtime-1", "runtime-2", "dynamic-1"}, order)
	assert.False(t, c.RuntimeStageEndTime().IsZero())
}

func TestAdvanceStage_BackwardsIsNoop(t *testing.T) {
	c := NewController(nil, false)
	fired := 0
	require.NoError(t, c.OnStage(Runtime, func() { fired++ }))

	c.AdvanceStage(Runtime)
	staticEnd := c.StaticStageEndTime()
	require.Equal(t, 1, fired)

	for _, s := range []Stage{Before, Static, Runtime} {
		c.AdvanceStage(s)
		assert.Equal(t, Runtime, c.CurrentStage())
	}
	assert.Equal(t, 1, fired)
	assert.Equal(t, staticEnd, c.StaticStageEndTime())
}

func TestAdvanceStage_SkippingRuntimeFiresBoth(t *testing.T) {
	c := NewController(nil, false)
	var got []Stage
	require.NoError(t, c.OnStage(Dynamic, func() { got = append(got, Dynamic) }))
	require.NoError(t, c.OnStage(Runtime, func() { got = append(got, Runtime) }))

	c.AdvanceStage(Static)
	c.AdvanceStage(Dynamic)
	assert.Equal(t, []Stage{Runtime, Dynamic}, got)
	assert.False(t, c.StaticStageEndTime().IsZero())
	assert.False(t, c.RuntimeStageEndTime().IsZero())
}

func TestOnStage_ImmediateWhenReached(t *testing.T) {
	c := NewController(nil, false)
	c.AdvanceStage(Dynamic)

	called := false
	require.NoError(t, c.OnStage(Runtime, func() { called = true }))
	assert.True(t, called)
}

func TestOnStage_RejectsNonListenableStages(t *testing.T) {
	c := NewController(nil, false)
	err := c.OnStage(Static, func() {})
	assert.True(t, invariant.Is(err))
}

func TestAbandonFromStatic_ReleasesRuntimeOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewController(ctx, false)
	defer c.Close()

	runtimeFired := false
	dynamicFired := false
	require.NoError(t, c.OnStage(Runtime, func() { runtimeFired = true }))
	require.NoError(t, c.OnStage(Dynamic, func() { dynamicFired = true }))

	c.AdvanceStage(Static)
	require.NoError(t, c.AbandonRender())

	assert.Equal(t, Abandoned, c.CurrentStage())
	assert.True(t, runtimeFired)
	assert.False(t, dynamicFired)

	require.NoError(t, c.WaitForStage(context.Background(), Runtime))

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	err := c.WaitForStage(waitCtx, Dynamic)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAbandonFromRuntime_ReleasesNobody(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewController(ctx, true)
	defer c.Close()

	dynamicFired := false
	require.NoError(t, c.OnStage(Dynamic, func() { dynamicFired = true }))
	c.AdvanceStage(Runtime)
	require.NoError(t, c.AbandonRender())

	assert.Equal(t, Abandoned, c.CurrentStage())
	assert.False(t, dynamicFired)

	// Advancing an abandoned attempt does nothing.
	c.AdvanceStage(Dynamic)
	assert.Equal(t, Abandoned, c.CurrentStage())
	assert.False(t, dynamicFired)
}

func TestAbandonRender_Invariants(t *testing.T) {
	final := NewController(nil, false)
	final.AdvanceStage(Static)
	assert.True(t, invariant.Is(final.AbandonRender()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewController(ctx, false)
	defer c.Close()
	c.AdvanceStage(Dynamic)
	assert.True(t, invariant.Is(c.AbandonRender()))
	assert.Equal(t, Dynamic, c.CurrentStage())
}

func TestAbortRejectsPendingWaits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController(ctx, false)
	defer c.Close()
	c.AdvanceStage(Static)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, s := range []Stage{Runtime, Dynamic} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.WaitForStage(context.Background(), s)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	cancel()
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestAbortAfterRuntimeKeepsRuntimeResolved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController(ctx, false)
	defer c.Close()
	c.AdvanceStage(Runtime)
	cancel()

	require.Eventually(t, func() bool {
		err := c.WaitForStage(context.Background(), Dynamic)
		return errors.Is(err, ErrCancelled)
	}, time.Second, time.Millisecond)
	assert.NoError(t, c.WaitForStage(context.Background(), Runtime))
}

func TestAbortRacingAdvance_RuntimeGateMatchesStage(t *testing.T) {
	for i := 0; i < 500; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		c := NewController(ctx, false)
		c.AdvanceStage(Static)

		// The gate settles either under mu or after the advance that wrote
		// current, so reading current here is ordered with its last write.
		settledAt := make(chan Stage, 1)
		c.runtimeGate.OnFire(func(error) { settledAt <- c.current })

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.AdvanceStage(Runtime)
		}()
		go func() {
			defer wg.Done()
			cancel()
		}()
		wg.Wait()

		err := c.WaitForStage(context.Background(), Runtime)
		stage := <-settledAt
		if err != nil {
			require.ErrorIs(t, err, ErrCancelled)
			require.True(t, stage < Runtime, "runtime wait rejected in stage %s", stage)
		} else {
			require.True(t, stage >= Runtime, "runtime wait opened in stage %s", stage)
		}
		c.Close()
	}
}

func TestCanSyncInterrupt(t *testing.T) {
	tests := []struct {
		name            string
		runtimePrefetch bool
		stage           Stage
		want            bool
	}{
		{"before never", false, Before, false},
		{"static without runtime prefetch", false, Static, true},
		{"runtime without runtime prefetch", false, Runtime, false},
		{"runtime with runtime prefetch", true, Runtime, true},
		{"dynamic with runtime prefetch", true, Dynamic, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(nil, tt.runtimePrefetch)
			c.AdvanceStage(tt.stage)
			assert.Equal(t, tt.want, c.CanSyncInterrupt())
		})
	}
}

func TestSyncInterrupt_FinalRenderForcesDynamic(t *testing.T) {
	c := NewController(nil, false)
	c.AdvanceStage(Static)
	reason := errors.New("Date.now() during prerender")

	c.SyncInterrupt(reason)
	assert.Equal(t, Dynamic, c.CurrentStage())
	assert.Equal(t, reason, c.StaticInterruptReason())
	assert.Nil(t, c.RuntimeInterruptReason())
}

func TestSyncInterrupt_RuntimeOnlyWithRuntimePrefetch(t *testing.T) {
	without := NewController(nil, false)
	without.AdvanceStage(Runtime)
	without.SyncInterrupt(errors.New("sync"))
	assert.Equal(t, Runtime, without.CurrentStage())
	assert.Nil(t, without.RuntimeInterruptReason())

	with := NewController(nil, true)
	with.AdvanceStage(Runtime)
	reason := errors.New("sync")
	with.SyncInterrupt(reason)
	assert.Equal(t, Dynamic, with.CurrentStage())
	assert.Equal(t, reason, with.RuntimeInterruptReason())
}

func TestSyncInterrupt_AbandonableAttemptAbandons(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewController(ctx, false)
	defer c.Close()

	c.SyncInterrupt(errors.New("ignored before start"))
	assert.Equal(t, Before, c.CurrentStage())

	c.AdvanceStage(Static)
	c.SyncInterrupt(errors.New("sync"))
	assert.Equal(t, Abandoned, c.CurrentStage())
	assert.Nil(t, c.StaticInterruptReason())
}
