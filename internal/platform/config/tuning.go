package config

import (
	"runtime"
	"time"
)

// Tuning holds concurrency parameters for the websocket and storage layers.
type Tuning struct {
	// Channel buffer sizes
	BroadcastChannelBuffer int
	ClientSendBuffer       int

	// Connection pools
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Rate limiting
	MinActionInterval time.Duration // Per websocket client
	MaxClientsPerHub  int
}

// DefaultTuning returns sensible defaults for production.
func DefaultTuning() *Tuning {
	numCPU := runtime.NumCPU()

	return &Tuning{
		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64,

		// SQLite serialises writers anyway; keep reads concurrent.
		DBMaxOpenConns: numCPU * 2,
		DBMaxIdleConns: numCPU,

		MinActionInterval: 250 * time.Millisecond,
		MaxClientsPerHub:  1000,
	}
}

// LowResourceTuning returns minimal settings for development.
func LowResourceTuning() *Tuning {
	return &Tuning{
		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,

		DBMaxOpenConns: 2,
		DBMaxIdleConns: 1,

		MinActionInterval: time.Second,
		MaxClientsPerHub:  20,
	}
}
