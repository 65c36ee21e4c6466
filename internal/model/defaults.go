package model

import "time"

// Shared defaults used by both the server and CLI binaries.
const (
	DefaultLogCapacity    = 50
	DefaultIngestInterval = 2 * time.Second
	DefaultSampleInterval = 2 * time.Second
	DefaultStreamInterval = time.Second
)

// DefaultStreams is the deployment stream set used when none is configured.
var DefaultStreams = []string{"person-detection", "face-detection", "segmentation"}
