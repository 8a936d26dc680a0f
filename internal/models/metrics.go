package models

import "time"

// SystemMetrics is a lightweight snapshot of process instrumentation.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	NegativeMarks            uint64    `json:"negativeMarks"`
	PositiveMarks            uint64    `json:"positiveMarks"`
	Expirations              uint64    `json:"expirations"`
	StoreWrites              uint64    `json:"storeWrites"`
	StoreErrors              uint64    `json:"storeErrors"`
	AverageStoreWriteMs      float64   `json:"averageStoreWriteMs"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
