package alarm

import (
	"fmt"
	"strings"
)

// Terminator ends every command on the wire.
const Terminator = "\n"

// Command is a validated command text without its line terminator.
// The terminator is appended by Frame at the write boundary only.
type Command struct {
	text string
}

// NewCommand validates text. Empty text and text carrying a line break are
// rejected, so Frame always produces exactly one terminator.
func NewCommand(text string) (Command, error) {
	if text == "" {
		return Command{}, fmt.Errorf("empty command: %w", ErrInvalidCommand)
	}

	if strings.ContainsAny(text, "\r\n") {
		return Command{}, fmt.Errorf("command %q contains a line break: %w", text, ErrInvalidCommand)
	}

	return Command{text: text}, nil
}

// String returns the command text as entered.
func (c Command) String() string {
	return c.text
}

// IsZero reports whether c was never validated.
func (c Command) IsZero() bool {
	return c.text == ""
}

// Frame returns the bytes written to the transport: text plus one terminator.
func (c Command) Frame() []byte {
	frame := make([]byte, 0, len(c.text)+len(Terminator))
	frame = append(frame, c.text...)

	return append(frame, Terminator...)
}
