package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvQuestionServiceURL     = "QUESTION_SERVICE_URL"
	EnvQuestionServiceTimeout = "QUESTION_SERVICE_TIMEOUT"

	EnvNotifyTopic    = "NOTIFY_TOPIC"
	EnvNotifyDLQTopic = "NOTIFY_DLQ_TOPIC"

	EnvSweepInterval  = "SWEEP_INTERVAL"
	EnvSweepBatchSize = "SWEEP_BATCH_SIZE"

	EnvCancelCutoff = "CANCEL_CUTOFF"

	EnvMaxBatchDays   = "MAX_BATCH_DAYS"
	EnvMaxSlotsPerDay = "MAX_SLOTS_PER_DAY"
)
