// Package events fans out committed canvas events to subscribers, in
// process via the Broadcaster and over the wire via the WebSocket server.
// Delivery is best-effort: slow subscribers lose events rather than block
// the engine.
package events
