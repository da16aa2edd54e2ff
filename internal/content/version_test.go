package content

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aspire/internal/core"
)

func TestResolveCachesVersion(t *testing.T) {
	tr := newFakeTransport("3.3.0")
	r := NewVersionResolver(tr, 0, 0, 0, nil)

	state, _ := r.State("sheet")
	assert.Equal(t, Unresolved, state)

	for i := 0; i < 3; i++ {
		v, err := r.Resolve(context.Background(), "sheet", nil)
		require.NoError(t, err)
		assert.Equal(t, core.Version3_3_0, v)
	}
	assert.EqualValues(t, 1, tr.readCalls.Load())

	state, v := r.State("sheet")
	assert.Equal(t, Resolved, state)
	assert.Equal(t, core.Version3_3_0, v)

	r.Forget("sheet")
	_, err := r.Resolve(context.Background(), "sheet", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, tr.readCalls.Load())
}

func TestResolveSingleFlight(t *testing.T) {
	tr := newFakeTransport("3.2.0")
	tr.gate = make(chan struct{})
	r := NewVersionResolver(tr, 0, 0, time.Minute, nil)

	const callers = 32
	var wg sync.WaitGroup
	results := make(chan core.SchemaVersion, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := r.Resolve(context.Background(), "sheet", nil)
			assert.NoError(t, err)
			results <- v
		}()
	}

	require.Eventually(t, func() bool { return tr.readCalls.Load() >= 1 }, time.Second, time.Millisecond)
	close(tr.gate)
	wg.Wait()
	close(results)

	for v := range results {
		assert.Equal(t, core.Version3_2_0, v)
	}
	assert.EqualValues(t, 1, tr.readCalls.Load())
}

func TestResolveFailuresAreNotCached(t *testing.T) {
	tr := newFakeTransport("3.0")
	tr.readErr = errors.New("network down")
	r := NewVersionResolver(tr, 0, 0, 0, nil)

	_, err := r.Resolve(context.Background(), "sheet", nil)
	require.Error(t, err)
	state, _ := r.State("sheet")
	assert.Equal(t, Unresolved, state)

	tr.readErr = nil
	v, err := r.Resolve(context.Background(), "sheet", nil)
	require.NoError(t, err)
	assert.Equal(t, core.Version3_0, v)
	assert.EqualValues(t, 2, tr.readCalls.Load())
}

func TestResolveRejectsBadCells(t *testing.T) {
	tests := []struct {
		name string
		rows core.RawTable
		want error
	}{
		{"unknown tag", core.RawTable{{"Aspire", "4.0"}}, ErrUnsupportedSchemaVersion},
		{"no rows", core.RawTable{}, ErrInconsistentRemoteData},
		{"empty last row", core.RawTable{{"3.0"}, {}}, ErrInconsistentRemoteData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := newFakeTransport("")
			tr.set(DefaultVersionLocation, tc.rows)
			_, err := NewVersionResolver(tr, 0, 0, 0, nil).Resolve(context.Background(), "sheet", nil)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestResolveUsesDataMapLocation(t *testing.T) {
	tr := newFakeTransport("2.8")
	tr.set("v_Version", core.RawTable{{"3.1.0"}})

	v, err := NewVersionResolver(tr, 0, 0, 0, nil).Resolve(context.Background(), "sheet",
		core.DataMap{core.KeyVersion: "v_Version"})
	require.NoError(t, err)
	assert.Equal(t, core.Version3_1_0, v)
	assert.Equal(t, [][]string{{"v_Version"}}, tr.readLocations())
}

func TestResolveCallerCanAbandonWait(t *testing.T) {
	tr := newFakeTransport("3.3.0")
	tr.gate = make(chan struct{})
	r := NewVersionResolver(tr, 0, 0, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, "sheet", nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return tr.readCalls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// The shared read still completes and its result is kept.
	close(tr.gate)
	require.Eventually(t, func() bool {
		state, _ := r.State("sheet")
		return state == Resolved
	}, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, tr.readCalls.Load())
}

func TestResolvedVersionExpiresWithTTL(t *testing.T) {
	tr := newFakeTransport("3.3.0")
	r := NewVersionResolver(tr, 0, 10*time.Millisecond, 0, nil)

	_, err := r.Resolve(context.Background(), "sheet", nil)
	require.NoError(t, err)
	state, _ := r.State("sheet")
	require.Equal(t, Resolved, state)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, r.Cache().CleanExpired())
	state, _ = r.State("sheet")
	assert.Equal(t, Unresolved, state)

	_, err = r.Resolve(context.Background(), "sheet", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, tr.readCalls.Load())
}
