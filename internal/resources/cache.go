package resources

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/resumeforge/resumeforge/pkg/logging"
	"github.com/resumeforge/resumeforge/pkg/metrics"
)

// Partition identifies one of the three independent cache partitions
type Partition string

const (
	PartitionFonts   Partition = "fonts"
	PartitionImages  Partition = "images"
	PartitionConfigs Partition = "configs"
)

// Entry holds a processed artifact with its insertion time
type Entry struct {
	Value    interface{}
	StoredAt time.Time
}

// Stats reports occupancy per partition
type Stats struct {
	Fonts   int `json:"fonts"`
	Images  int `json:"images"`
	Configs int `json:"configs"`
}

// Config holds the per-partition entry capacities
type Config struct {
	FontEntries   int `json:"font_entries"`
	ImageEntries  int `json:"image_entries"`
	ConfigEntries int `json:"config_entries"`
}

// DefaultConfig returns default cache capacities
func DefaultConfig() Config {
	return Config{
		FontEntries:   32,
		ImageEntries:  64,
		ConfigEntries: 128,
	}
}

// Cache is the in-process resource cache: three independent LRU-bounded
// key/value partitions for processed fonts, rasterized images, and resolved
// generation configurations. Partitions evict independently; entries within
// a partition are independent, so no cross-key locking is needed beyond
// what the LRU provides.
type Cache struct {
	fonts   *lru.Cache[string, Entry]
	images  *lru.Cache[string, Entry]
	configs *lru.Cache[string, Entry]

	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewCache creates a resource cache with the given capacities
func NewCache(config Config, m *metrics.Metrics, logger *logging.Logger) (*Cache, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}

	fonts, err := lru.New[string, Entry](config.FontEntries)
	if err != nil {
		return nil, fmt.Errorf("font partition: %w", err)
	}
	images, err := lru.New[string, Entry](config.ImageEntries)
	if err != nil {
		return nil, fmt.Errorf("image partition: %w", err)
	}
	configs, err := lru.New[string, Entry](config.ConfigEntries)
	if err != nil {
		return nil, fmt.Errorf("config partition: %w", err)
	}

	return &Cache{
		fonts:   fonts,
		images:  images,
		configs: configs,
		metrics: m,
		logger:  logger,
	}, nil
}

// Get retrieves a value from a partition
func (c *Cache) Get(partition Partition, key string) (interface{}, bool) {
	store := c.store(partition)
	if store == nil {
		return nil, false
	}

	entry, ok := store.Get(key)
	if ok {
		if c.metrics != nil {
			c.metrics.RecordCacheHit(string(partition))
		}
		return entry.Value, true
	}

	if c.metrics != nil {
		c.metrics.RecordCacheMiss(string(partition))
	}
	return nil, false
}

// Put stores a value in a partition, evicting the least-recently-used
// entry when the partition is at capacity
func (c *Cache) Put(partition Partition, key string, value interface{}) {
	store := c.store(partition)
	if store == nil {
		return
	}

	store.Add(key, Entry{Value: value, StoredAt: time.Now()})
	if c.metrics != nil {
		c.metrics.UpdateCacheEntries(string(partition), store.Len())
	}
}

// GetOrCompute returns the cached value or computes and stores it. Concurrent
// callers for the same partition/key share a single computation, so a cache
// hit is always cheaper than a cold computation.
func (c *Cache) GetOrCompute(ctx context.Context, partition Partition, key string, compute func(context.Context) (interface{}, error)) (interface{}, error) {
	if value, ok := c.Get(partition, key); ok {
		return value, nil
	}

	flightKey := string(partition) + ":" + key
	value, err, _ := c.group.Do(flightKey, func() (interface{}, error) {
		// Re-check: another flight may have populated the entry between
		// the miss and the flight start
		if value, ok := c.Get(partition, key); ok {
			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		c.Put(partition, key, value)
		return value, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Stats returns occupancy per partition
func (c *Cache) Stats() Stats {
	return Stats{
		Fonts:   c.fonts.Len(),
		Images:  c.images.Len(),
		Configs: c.configs.Len(),
	}
}

// TotalEntries returns the combined occupancy across partitions
func (s Stats) TotalEntries() int {
	return s.Fonts + s.Images + s.Configs
}

// ClearAll empties every partition
func (c *Cache) ClearAll() {
	c.fonts.Purge()
	c.images.Purge()
	c.configs.Purge()

	if c.metrics != nil {
		c.metrics.UpdateCacheEntries(string(PartitionFonts), 0)
		c.metrics.UpdateCacheEntries(string(PartitionImages), 0)
		c.metrics.UpdateCacheEntries(string(PartitionConfigs), 0)
	}

	c.logger.Info("Resource cache cleared")
}

func (c *Cache) store(partition Partition) *lru.Cache[string, Entry] {
	switch partition {
	case PartitionFonts:
		return c.fonts
	case PartitionImages:
		return c.images
	case PartitionConfigs:
		return c.configs
	default:
		return nil
	}
}
