package metrics

import "time"

// Operation names
const (
	// OpModelLoad is engine loading at pipeline start
	OpModelLoad = "model_load"
	// OpChunkExtract is cutting a chunk from the buffer
	OpChunkExtract = "chunk_extract"
	// OpResample is conversion to the engine rate
	OpResample = "resample"
	// OpInference is one engine pass
	OpInference = "inference"
	// OpPublish is a subtitle update
	OpPublish = "publish"
	// OpSinkDeliver is delivery to a result sink such as MQTT
	OpSinkDeliver = "sink_deliver"
	// OpFeed is a block handed to the pipeline by a source
	OpFeed = "feed"
	// OpEngineRequest is one HTTP round trip to a remote engine
	OpEngineRequest = "engine_request"
)

// Operation status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusEmpty   = "empty" // inference produced no text
)

// Sample counter kinds
const (
	SamplesAppended  = "appended"
	SamplesEvicted   = "evicted"
	SamplesExtracted = "extracted"
)

// Histogram bucket configuration
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	BucketFactor2 = 2

	BucketCount10 = 10
	BucketCount12 = 12
)

// ShutdownTimeout bounds graceful shutdown of the metrics endpoint
const ShutdownTimeout = 5 * time.Second
