// Package channel defines the transport-facing types and interfaces the
// download pipeline talks to. Concrete adapters such as Telegram live in
// subpackages.
package channel

import "context"

// MaxAttachmentBytes is the hard per-message payload ceiling the transport
// accepts for a single attachment: 2 GiB. The catalog size filter and the
// delivery chunk size both key off this value.
const MaxAttachmentBytes int64 = 2 * 1024 * 1024 * 1024

// Session identifies the chat a unit of work belongs to.
type Session struct {
	ChatID      int64
	UserName    string
	DisplayName string
}

// Choice is one option of an interactive prompt. Token is echoed back
// verbatim by the transport when the user picks this option.
type Choice struct {
	Label string
	Token []byte
}

// Sender is the outbound surface of a chat transport.
type Sender interface {
	// SendText delivers a plain text message.
	SendText(ctx context.Context, s Session, text string) error
	// SendChoice delivers an interactive prompt with one control per choice.
	SendChoice(ctx context.Context, s Session, text string, choices []Choice) error
	// SendMedia delivers a local file as a media (video) message.
	SendMedia(ctx context.Context, s Session, path, caption string) error
	// SendDocument delivers a local file as a document message.
	SendDocument(ctx context.Context, s Session, path, caption string) error
	// EditLastMessage rewrites the text of the most recent message this
	// sender produced in the session, falling back to a new message when
	// there is none to edit.
	EditLastMessage(ctx context.Context, s Session, text string) error
}

// Handler consumes inbound transport events. Implementations must be safe
// for concurrent use: the transport dispatches each event independently.
type Handler interface {
	HandleCommand(ctx context.Context, s Session, name, args string) error
	HandleText(ctx context.Context, s Session, body string) error
	HandleCallback(ctx context.Context, s Session, payload []byte) error
}
