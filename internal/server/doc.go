// Package server implements the real-time side of the chat service.
//
// The Gateway upgrades HTTP requests to WebSocket connections and runs one
// Session per connection. A Session authenticates the connection, replays
// recent history from the message store, registers the connection in the
// Registry and then relays every inbound message to storage and to all
// registered connections.
package server
