package sim

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddGetRemove(t *testing.T) {
	r := NewRegistry()
	o := &Orchestrator{matchID: "m1"}

	require.NoError(t, r.Add("m1", o))
	assert.True(t, r.Active("m1"))

	got, ok := r.Get("m1")
	require.True(t, ok)
	assert.Same(t, o, got)

	r.Remove("m1")
	assert.False(t, r.Active("m1"))
	_, ok = r.Get("m1")
	assert.False(t, ok)
}

func TestRegistry_DuplicateAdd(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("m1", &Orchestrator{}))
	assert.ErrorIs(t, r.Add("m1", &Orchestrator{}), ErrSimulationActive)
}

func TestRegistry_ConcurrentAddOneWinner(t *testing.T) {
	r := NewRegistry()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Add("m1", &Orchestrator{})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrSimulationActive)
		}
	}
	assert.Equal(t, 1, succeeded)
}
