package room

// Broadcaster fans a message out to every connection subscribed to a
// room, or to the lobby. Implemented by the websocket hub; injected so
// this package never depends on the transport.
type Broadcaster interface {
	ToRoom(roomID string, message any)
	ToLobby(message any)
}
