// Package board provides type-safe Go definitions and the Redis schema for
// the patient board state. The board is the shared state system where all
// components (HTTP API, agents, CLI) interact via well-defined data
// structures stored in Redis.
//
// All Redis keys and channels are namespaced by normalized patient ID so
// that every patient's board is fully isolated on a single Redis server.
package board
