package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "labbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultQuestionServiceTimeout = 5 * time.Second

	DefaultSweepInterval  = 5 * time.Minute
	DefaultSweepBatchSize = 200

	// End users may not cancel inside this window before the booking
	// starts; managers and admins are exempt.
	DefaultCancelCutoff = 24 * time.Hour

	DefaultMaxBatchDays   = 92
	DefaultMaxSlotsPerDay = 48

	DefaultPaginationLimit = 100
)
