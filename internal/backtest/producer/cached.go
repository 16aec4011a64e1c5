package producer

import (
	"bytes"
	"encoding/gob"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// CachedProducer wraps a Producer, fully draining it once at construction
// into a flat, timestamp-parallel slice so repeated replay of the same
// window (e.g. parameter sweeps) costs two binary searches instead of a
// fresh merge.
type CachedProducer struct {
	items []Item
	tsNs  []int64

	stopNs     int64
	cursor     int
	cursorStop int
}

// NewCached drains inner across [minTsNs, maxTsNs] and caches every item.
func NewCached(inner *Producer) *CachedProducer {
	minNs, maxNs := inner.MinMaxTsNs()
	inner.Setup(minNs-replayBufferNs, maxNs)

	c := &CachedProducer{}
	for inner.HasData() {
		item, ok := inner.Next()
		if !ok {
			break
		}
		c.items = append(c.items, item)
		c.tsNs = append(c.tsNs, item.TsInit)
	}
	return c
}

// MinMaxTsNs returns the cached stream's full timestamp span.
func (c *CachedProducer) MinMaxTsNs() (int64, int64) {
	if len(c.tsNs) == 0 {
		return 0, 0
	}
	return c.tsNs[0], c.tsNs[len(c.tsNs)-1]
}

// Setup becomes two binary searches over the cached timestamp slice,
// making every subsequent operation O(1).
func (c *CachedProducer) Setup(startNs, stopNs int64) {
	from := startNs + replayBufferNs
	c.stopNs = stopNs
	c.cursor = sort.Search(len(c.tsNs), func(i int) bool { return c.tsNs[i] >= from })
	c.cursorStop = sort.Search(len(c.tsNs), func(i int) bool { return c.tsNs[i] > stopNs })
}

// HasData reports whether the cursor still has a cached item in range.
func (c *CachedProducer) HasData() bool { return c.cursor < c.cursorStop }

// Next returns the next cached item, advancing the cursor.
func (c *CachedProducer) Next() (Item, bool) {
	if !c.HasData() {
		return Item{}, false
	}
	item := c.items[c.cursor]
	c.cursor++
	return item, true
}

// snapshot is the gob-serializable form of a cache persisted across runs.
type snapshot struct {
	Items []Item
	TsNs  []int64
}

// Snapshot serializes the full cache, zstd-compressed, so a parameter sweep
// across process restarts can skip re-wrangling the source tables. Callers
// that populate GenericData.Payload with a concrete type must gob.Register
// it beforehand; gob cannot encode an interface{} field otherwise.
func (c *CachedProducer) Snapshot() ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(snapshot{Items: c.items, TsNs: c.tsNs}); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw.Bytes(), nil), nil
}

// LoadCachedSnapshot decompresses and decodes a snapshot produced by
// Snapshot, reconstructing a ready-to-Setup CachedProducer without
// re-running the original producer's setup/integrity checks.
func LoadCachedSnapshot(data []byte) (*CachedProducer, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, err
	}
	return &CachedProducer{items: snap.Items, tsNs: snap.TsNs}, nil
}
