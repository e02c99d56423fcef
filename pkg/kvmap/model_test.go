// Model-based test: the map is driven with randomized operation
// sequences and compared after every step against a deliberately simple
// host-side oracle (a plain Go map), the only state the public contract
// actually promises.

package kvmap_test

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/KentBeck/GPUSortedMap/pkg/kvmap"
)

// oracle mirrors the observable state: key -> live value.
type oracle map[uint32]uint32

func (o oracle) rangeOf(from, to uint32) []kvmap.KvEntry {
	out := []kvmap.KvEntry{}
	for k, v := range o {
		if from <= k && k < to {
			out = append(out, kvmap.KvEntry{Key: k, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out
}

func Test_Map_Matches_Oracle_Under_Random_Operation_Sequences(t *testing.T) {
	t.Parallel()

	const (
		capacity = 64
		keySpace = 96 // > capacity so capacity rejections occur
		steps    = 400
	)

	for _, seed := range []int64{1, 2, 3, 42} {
		seed := seed
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			t.Parallel()

			rng := rand.New(rand.NewSource(seed))
			m, err := kvmap.New(capacity)
			require.NoError(t, err)
			defer m.Close()

			model := oracle{}
			// Keys ever stored, live or tombstoned: the states that occupy
			// a slab slot and therefore bound what another put can add.
			occupied := map[uint32]struct{}{}

			for step := 0; step < steps; step++ {
				switch rng.Intn(4) {
				case 0: // bulk put
					batchSize := 1 + rng.Intn(8)
					seen := map[uint32]struct{}{}
					batch := []kvmap.KvEntry{}
					for len(batch) < batchSize {
						k := uint32(rng.Intn(keySpace))
						if _, dup := seen[k]; dup {
							continue
						}
						seen[k] = struct{}{}
						batch = append(batch, kvmap.KvEntry{Key: k, Value: rng.Uint32() >> 1})
					}

					netNew := 0
					for k := range seen {
						if _, ok := occupied[k]; !ok {
							netNew++
						}
					}
					err := m.BulkPut(batch)
					if len(occupied)+netNew > capacity {
						var capErr *kvmap.CapacityExceededError
						require.ErrorAs(t, err, &capErr, "step %d: expected capacity rejection", step)

						continue
					}
					require.NoError(t, err, "step %d: put", step)
					for _, e := range batch {
						model[e.Key] = e.Value
						occupied[e.Key] = struct{}{}
					}

				case 1: // bulk delete
					batchSize := 1 + rng.Intn(8)
					keys := make([]uint32, batchSize)
					for i := range keys {
						keys[i] = uint32(rng.Intn(keySpace))
					}
					require.NoError(t, m.BulkDelete(keys), "step %d: delete", step)
					for _, k := range keys {
						delete(model, k)
					}

				case 2: // bulk get
					batchSize := 1 + rng.Intn(8)
					keys := make([]uint32, batchSize)
					for i := range keys {
						keys[i] = uint32(rng.Intn(keySpace))
					}
					results, err := m.BulkGet(keys)
					require.NoError(t, err, "step %d: get", step)
					for i, k := range keys {
						want, live := model[k]
						require.Equal(t, live, results[i].Found, "step %d: key %d found", step, k)
						if live {
							require.Equal(t, want, results[i].Value, "step %d: key %d value", step, k)
						}
					}

				case 3: // range
					from := uint32(rng.Intn(keySpace))
					to := uint32(rng.Intn(keySpace + 8))
					got, err := m.Range(from, to)
					require.NoError(t, err, "step %d: range", step)
					want := model.rangeOf(from, to)
					if diff := cmp.Diff(want, got); diff != "" {
						t.Fatalf("step %d: Range(%d, %d) mismatch (-want +got):\n%s", step, from, to, diff)
					}
				}

				require.Equal(t, len(model), m.Len(), "step %d: live count", step)
				require.LessOrEqual(t, m.SlabLen(), capacity, "step %d: slab length bound", step)
			}

			// Final extensional check over the whole key space.
			got, err := m.Range(0, keySpace+1)
			require.NoError(t, err)
			if diff := cmp.Diff(model.rangeOf(0, keySpace+1), got); diff != "" {
				t.Fatalf("final state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
