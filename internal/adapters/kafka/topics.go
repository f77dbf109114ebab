package kafka

// Topic definitions for Kafka event streaming
const (
	// Agent result lifecycle
	TopicResultFinalized = "results.finalized"

	// Batch lifecycle outcomes
	TopicBatchCompleted = "batches.completed"
	TopicBatchFailed    = "batches.failed"
)
