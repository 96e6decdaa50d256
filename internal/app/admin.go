package app

import (
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"searchfetch/internal/cache"
	"searchfetch/internal/search"
)

// CacheStatsReport is the operator view of cache effectiveness.
type CacheStatsReport struct {
	Hits            uint64 `json:"hits"`
	Misses          uint64 `json:"misses"`
	TotalLookups    uint64 `json:"total_lookups"`
	HitRate         string `json:"hit_rate"`
	SearchEntries   int    `json:"search_entries"`
	ContentEntries  int    `json:"content_entries"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
}

// CacheStats reports hit/miss counters and current entry counts.
func (a *App) CacheStats() CacheStatsReport {
	hits, misses := a.stats.Snapshot()
	return CacheStatsReport{
		Hits:            hits,
		Misses:          misses,
		TotalLookups:    hits + misses,
		HitRate:         fmt.Sprintf("%.2f%%", a.stats.HitRate()),
		SearchEntries:   a.searchCache.Current().Len(),
		ContentEntries:  a.contentCache.Current().Len(),
		CacheTTLSeconds: a.snapshot().CacheTTLSeconds,
	}
}

// ClearReport records a cache flush.
type ClearReport struct {
	SearchEntriesCleared  int    `json:"search_entries_cleared"`
	ContentEntriesCleared int    `json:"content_entries_cleared"`
	ClearedAt             string `json:"cleared_at"`
}

// ClearCache drops every cached entry from both stores and resets the
// hit/miss counters.
func (a *App) ClearCache() ClearReport {
	searchStore := a.searchCache.Current()
	contentStore := a.contentCache.Current()
	report := ClearReport{
		SearchEntriesCleared:  searchStore.Len(),
		ContentEntriesCleared: contentStore.Len(),
		ClearedAt:             a.clk.Now().Format("2006-01-02 15:04:05"),
	}
	searchStore.Clear()
	contentStore.Clear()
	a.stats.Reset()
	a.logger.Info("caches cleared",
		zap.Int("search_entries", report.SearchEntriesCleared),
		zap.Int("content_entries", report.ContentEntriesCleared),
	)
	return report
}

// Preferences returns the current preference snapshot.
func (a *App) Preferences() Preferences {
	return a.snapshot()
}

// PreferencesUpdate carries partial preference changes; nil fields are left
// untouched.
type PreferencesUpdate struct {
	Region          *string `json:"default_region"`
	SafeSearch      *bool   `json:"safe_search"`
	MaxResults      *int    `json:"max_results"`
	CacheTTLSeconds *int    `json:"cache_ttl_seconds"`
}

// SetPreferences validates and applies updates. Changing the cache TTL
// replaces both cache instances wholesale and resets the counters, so stale
// entries inserted under the old lifetime never outlive it.
func (a *App) SetPreferences(update PreferencesUpdate) (Preferences, error) {
	a.prefMu.Lock()
	defer a.prefMu.Unlock()

	if update.Region != nil {
		alias := normalizeRegion(*update.Region)
		if _, ok := regionCodes[alias]; !ok {
			return Preferences{}, &search.Error{
				Kind:    search.ErrInvalidInput,
				Message: fmt.Sprintf("unknown region %q", *update.Region),
				Hint:    "use one of: tw, hk, cn, jp, us, uk, global",
			}
		}
		a.prefs.Region = alias
	}
	if update.SafeSearch != nil {
		a.prefs.SafeSearch = *update.SafeSearch
	}
	if update.MaxResults != nil {
		if *update.MaxResults < 1 || *update.MaxResults > 50 {
			return Preferences{}, &search.Error{
				Kind:    search.ErrInvalidInput,
				Message: "max_results must be between 1 and 50",
			}
		}
		a.prefs.MaxResults = *update.MaxResults
	}
	if update.CacheTTLSeconds != nil {
		ttl := *update.CacheTTLSeconds
		if ttl < 0 {
			return Preferences{}, &search.Error{
				Kind:    search.ErrInvalidInput,
				Message: "cache_ttl_seconds must be >= 0",
			}
		}
		if ttl != a.prefs.CacheTTLSeconds {
			a.prefs.CacheTTLSeconds = ttl
			a.swapCaches()
		}
	}

	a.logger.Info("preferences updated",
		zap.String("region", a.prefs.Region),
		zap.Bool("safe_search", a.prefs.SafeSearch),
		zap.Int("max_results", a.prefs.MaxResults),
		zap.Int("cache_ttl_seconds", a.prefs.CacheTTLSeconds),
	)
	return a.prefs, nil
}

// swapCaches replaces both stores with fresh instances. In-flight reads
// complete against the instance they already hold.
func (a *App) swapCaches() {
	a.stats.Reset()
	now := a.clk.Now
	a.searchCache.Swap(cache.New[[]search.Result]("search", a.cfg.Cache.Capacity, a.stats, now))
	a.contentCache.Swap(cache.New[search.FetchResult]("content", a.cfg.Cache.Capacity, a.stats, now))
}

func normalizeRegion(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}

// SystemReport is a point-in-time runtime snapshot.
type SystemReport struct {
	GoVersion      string `json:"go_version"`
	Goroutines     int    `json:"goroutines"`
	AllocBytes     uint64 `json:"alloc_bytes"`
	SysBytes       uint64 `json:"sys_bytes"`
	GCCycles       uint32 `json:"gc_cycles"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	StartedAt      string `json:"started_at"`
	GatePermits    int    `json:"gate_permits"`
	SearchEntries  int    `json:"search_entries"`
	ContentEntries int    `json:"content_entries"`
}

// SystemInfo reports process runtime statistics.
func (a *App) SystemInfo() SystemReport {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	now := a.clk.Now()
	return SystemReport{
		GoVersion:      runtime.Version(),
		Goroutines:     runtime.NumGoroutine(),
		AllocBytes:     mem.Alloc,
		SysBytes:       mem.Sys,
		GCCycles:       mem.NumGC,
		UptimeSeconds:  int64(now.Sub(a.startedAt).Seconds()),
		StartedAt:      a.startedAt.Format("2006-01-02 15:04:05"),
		GatePermits:    a.gate.Size(),
		SearchEntries:  a.searchCache.Current().Len(),
		ContentEntries: a.contentCache.Current().Len(),
	}
}
