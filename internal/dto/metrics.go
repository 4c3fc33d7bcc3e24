package dto

import "time"

// SystemMetrics is a point-in-time view of the in-process counters.
type SystemMetrics struct {
	CacheHitRatio            float64        `json:"cache_hit_ratio"`
	CacheHits                uint64         `json:"cache_hits"`
	CacheMisses              uint64         `json:"cache_misses"`
	RequestsTotal            uint64         `json:"requests_total"`
	AverageRequestDurationMs float64        `json:"average_request_duration_ms"`
	RankingComputations      uint64         `json:"ranking_computations"`
	Goroutines               int            `json:"goroutines"`
	QueueDepths              map[string]int `json:"queue_depths,omitempty"`
	GeneratedAt              time.Time      `json:"generated_at"`
}
