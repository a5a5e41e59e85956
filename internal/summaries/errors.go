package summaries

import "errors"

// MaxChatMessageLength caps a chat message, counted in characters.
const MaxChatMessageLength = 1000

var (
	ErrNoContent       = errors.New("document has no extracted text")
	ErrMessageRequired = errors.New("message is required")
	ErrMessageTooLong  = errors.New("message is too long")
)
