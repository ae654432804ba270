package chatclient

// Session is the per-connection state handed out by the server. It is
// constructed when the channel comes up, filled in by username_assigned,
// and torn down on disconnect; nothing in it survives a reconnect.
type Session struct {
	// Username is the display name the server bound to our device identity.
	Username string
	// UserID is the per-connection identity the server stamps on our
	// messages. Messages authored before the last reconnect carry an older
	// id and are no longer ours to delete.
	UserID string
	// DeviceID is the durable identity we presented in join_chat.
	DeviceID string
}
