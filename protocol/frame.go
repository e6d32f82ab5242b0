package protocol

// Frame is one client-to-server JSON frame. Exactly two types exist: "join"
// binds the connection to a session, "message" posts to the bound session.
type Frame struct {
	Type      string `json:"type" validate:"required,oneof=join message"`
	SessionID string `json:"sessionId" validate:"required_if=Type join,max=128"`
	Username  string `json:"username" validate:"required_if=Type join,max=64"`
	Message   string `json:"message" validate:"max=4096"`
}
