package bot

import (
	"context"
	"time"
)

// Choice is one inline button: a visible label and the callback data it sends back.
type Choice struct {
	Label string
	Data  string
}

// Message is one incoming chat message, already reduced to the fields the router
// needs. Command and Args are set when the text is a slash command.
type Message struct {
	UserID  int64
	ChatID  int64
	Text    string
	Command string
	Args    string
	Video   *Video
}

// Video is an incoming video attachment accepted for relay.
type Video struct {
	FileID   string
	FileName string
	MimeType string
}

// Callback is one inline-button press.
type Callback struct {
	ID        string
	UserID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// Transport is the outbound chat surface. The production implementation wraps the
// Telegram Bot API; tests substitute a recorder.
type Transport interface {
	// SendMessage sends HTML-formatted text and returns the new message id.
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	// SendChoice sends text with one row of inline buttons.
	SendChoice(ctx context.Context, chatID int64, text string, choices []Choice) (int, error)
	// EditMessage replaces the text of a previously sent message, dropping any buttons.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	// EditChoice replaces both text and buttons of a previously sent message.
	EditChoice(ctx context.Context, chatID int64, messageID int, text string, choices []Choice) error
	// SendDocument uploads a local file into the chat.
	SendDocument(ctx context.Context, chatID int64, path, fileName string) error
	// Download fetches a remote file into destDir and returns the local path.
	Download(ctx context.Context, fileID, destDir, fileName string) (string, error)
	// Latency measures one round-trip to the chat platform.
	Latency(ctx context.Context) (time.Duration, error)
}

// SenderAdapter exposes a Transport as a broadcast delivery target.
type SenderAdapter struct {
	Transport Transport
}

func (a SenderAdapter) SendTo(ctx context.Context, userID int64, text string) error {
	_, err := a.Transport.SendMessage(ctx, userID, text)
	return err
}
