package aggregate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"tcpjobq/lib/codec"
	"tcpjobq/lib/core"
)

func TestListAggregator_Fold_PreservesArrivalOrder(t *testing.T) {
	a := NewListAggregator()
	a.Fold(Pair{Argument: core.Argument{Key: "x"}, Result: core.Result{Payload: []byte("1")}})
	a.Fold(Pair{Argument: core.Argument{Key: "y"}, Result: core.Result{Payload: []byte("2")}})

	pairs := a.Pairs()
	require.Len(t, pairs, 2)
	require.Equal(t, "x", pairs[0].Argument.Key)
	require.Equal(t, "y", pairs[1].Argument.Key)
}

func TestListAggregator_Finalize_RoundTrips(t *testing.T) {
	a := NewListAggregator()
	a.Fold(Pair{Argument: core.Argument{Key: "x"}, Result: core.Result{Payload: []byte("1")}})

	encoded := a.Finalize()

	var decoded []Pair
	require.NoError(t, codec.Decode(encoded, &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "x", decoded[0].Argument.Key)
	require.Equal(t, []byte("1"), decoded[0].Result.Payload)
}

func TestListAggregator_Fold_ConcurrentSafe(t *testing.T) {
	a := NewListAggregator()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a.Fold(Pair{Argument: core.Argument{Key: "k"}})
		}(i)
	}
	wg.Wait()
	require.Len(t, a.Pairs(), 100)
}
