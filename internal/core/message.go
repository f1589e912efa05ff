package core

// Fixed texts the server puts on the wire.
const (
	JoinedText        = "Connected\n"
	DisconnectedText  = "Disconnected\n"
	InvalidParamsText = "Invalid parameters in the command"
	RateLimitedText   = "Rate limit exceeded"
)
