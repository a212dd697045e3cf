package config

const (
	// TopicPipelineTick wakes the drain controller. Published on source
	// registration, by the external scheduler, and by the drain loop itself
	// while eligible jobs remain.
	TopicPipelineTick = "pipeline.tick"

	// ChannelWorker is the consumer channel the drain workers share.
	ChannelWorker = "worker"
)
