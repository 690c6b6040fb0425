package notifications

// Payload is a generic user-facing notification payload. Urgent payloads
// are shown as alerts where the platform distinguishes them.
type Payload struct {
	Title   string
	Content string
	Urgent  bool
}

// Sender sends notifications using a platform-specific backend.
type Sender interface {
	Send(payload Payload)
}
