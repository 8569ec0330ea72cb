package bev

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"
	"go.uber.org/atomic"

	"go.viam.com/surroundview/rimage/transform"
)

type mapKey struct {
	intrinsics  transform.FisheyeIntrinsics
	rotation    [9]float64
	translation r3.Vector
	rangeM      float64
	size        int
}

func newMapKey(cam *transform.FisheyeCamera, rangeM float64, size int) mapKey {
	pose := cam.Pose()
	key := mapKey{
		intrinsics:  cam.Intrinsics(),
		translation: pose.Translation,
		rangeM:      rangeM,
		size:        size,
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			key.rotation[3*i+j] = pose.Rotation.At(i, j)
		}
	}
	return key
}

// MapCache keeps the last lookup table built for each of a fixed number of slots, rebuilding a
// slot only when its camera, range or size changes. It is safe for concurrent use.
type MapCache struct {
	mu    sync.Mutex
	slots map[int]cachedMap
	hits  atomic.Int64
}

type cachedMap struct {
	key mapKey
	m   *Map
}

// NewMapCache returns an empty cache.
func NewMapCache() *MapCache {
	return &MapCache{slots: map[int]cachedMap{}}
}

// Get returns the map for slot, building it if the slot is empty or stale.
func (mc *MapCache) Get(ctx context.Context, slot int, cam *transform.FisheyeCamera, rangeM float64, size int) (*Map, error) {
	key := newMapKey(cam, rangeM, size)
	mc.mu.Lock()
	cached, ok := mc.slots[slot]
	if ok && cached.key == key {
		mc.mu.Unlock()
		mc.hits.Inc()
		return cached.m, nil
	}
	mc.mu.Unlock()

	m, err := BuildMap(ctx, cam, rangeM, size)
	if err != nil {
		return nil, err
	}
	mc.mu.Lock()
	mc.slots[slot] = cachedMap{key: key, m: m}
	mc.mu.Unlock()
	return m, nil
}

// Hits is the number of lookups served without rebuilding.
func (mc *MapCache) Hits() int {
	return int(mc.hits.Load())
}
