package config

const (
	// TopicReindex carries document ids whose chunks should be rebuilt.
	TopicReindex = "document.reindex"

	// ChannelReindex is the consumer channel of the reindex worker.
	ChannelReindex = "ragline"
)
