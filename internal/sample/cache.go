package sample

// cacheKey identifies a sample build by what determined its contents:
// the measured path length (at 0.01px resolution) and the sample count.
type cacheKey struct {
	lengthCentiPx int64
	count         int
}

func keyFor(length float64) cacheKey {
	return cacheKey{
		lengthCentiPx: int64(length * 100),
		count:         sampleCount(length),
	}
}

// sampleCache is a small bounded cache of completed sample maps. Insertion
// order is tracked so the oldest entry can be evicted once the cap is
// reached; a long session never grows it without bound.
type sampleCache struct {
	entries map[cacheKey]*CoordinateSample
	order   []cacheKey
	max     int
}

func newSampleCache(max int) *sampleCache {
	if max <= 0 {
		max = 1
	}
	return &sampleCache{
		entries: make(map[cacheKey]*CoordinateSample, max),
		max:     max,
	}
}

func (c *sampleCache) get(k cacheKey) (*CoordinateSample, bool) {
	s, ok := c.entries[k]
	return s, ok
}

func (c *sampleCache) put(k cacheKey, s *CoordinateSample) {
	if _, exists := c.entries[k]; !exists {
		for len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, k)
	}
	c.entries[k] = s
}

func (c *sampleCache) len() int {
	return len(c.entries)
}
