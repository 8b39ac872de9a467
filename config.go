package leafsearch

import "time"

// Config wires together every component the leaf executor depends on:
// storage backend selection, cache sizes, and concurrency limits.
type Config struct {
	Backend string `yaml:"backend"`

	// MaxConcurrentSplits bounds how many splits may be open and searched
	// at once across all in-flight requests sharing this executor
	// (spec.md §5).
	MaxConcurrentSplits int64 `yaml:"max-concurrent-splits"`

	FooterCacheMaxMB    uint64 `yaml:"footer-cache-max-mb"`
	FastFieldCacheMaxMB uint64 `yaml:"fast-field-cache-max-mb"`
	ResultCacheMaxMB    uint64 `yaml:"result-cache-max-mb"`

	BloomFilterFalsePositive float64 `yaml:"bloom-filter-false-positive"`

	WarmupTimeout time.Duration `yaml:"warmup-timeout"`
	SearchTimeout time.Duration `yaml:"search-timeout"`
}

// DefaultConfig returns the executor's out-of-the-box settings.
func DefaultConfig() Config {
	return Config{
		Backend:                  "local",
		MaxConcurrentSplits:      100,
		FooterCacheMaxMB:         500,
		FastFieldCacheMaxMB:      1000,
		ResultCacheMaxMB:         100,
		BloomFilterFalsePositive: 0.01,
		WarmupTimeout:            30 * time.Second,
		SearchTimeout:            30 * time.Second,
	}
}
