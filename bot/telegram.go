package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/valtero/relaybot/telemetry"
)

// Video attachment types accepted for relay when sent as a generic document.
var acceptedVideoMimes = map[string]bool{
	"video/mp4": true,
	"video/mkv": true,
	"video/avi": true,
}

// Handler consumes normalized updates. Implemented by Bot.
type Handler interface {
	HandleMessage(ctx context.Context, m Message)
	HandleCallback(ctx context.Context, c Callback)
}

// Telegram implements Transport over the Bot API and drives the long-poll update loop.
type Telegram struct {
	api *tgbotapi.BotAPI
}

func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	slog.Info("telegram bot authorized", slog.String("username", api.Self.UserName))
	return &Telegram{api: api}, nil
}

func (t *Telegram) SendMessage(_ context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *Telegram) SendChoice(_ context.Context, chatID int64, text string, choices []Choice) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = choiceMarkup(choices)
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *Telegram) EditMessage(_ context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := t.api.Send(edit)
	return err
}

func (t *Telegram) EditChoice(_ context.Context, chatID int64, messageID int, text string, choices []Choice) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, choiceMarkup(choices))
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := t.api.Send(edit)
	return err
}

func (t *Telegram) SendDocument(_ context.Context, chatID int64, path, fileName string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: fileName, Reader: f})
	_, err = t.api.Send(doc)
	return err
}

// Download fetches the attachment via the file API into destDir. The file name is
// flattened to its base so a crafted name can't escape the directory.
func (t *Telegram) Download(ctx context.Context, fileID, destDir, fileName string) (string, error) {
	file, err := t.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	dest := filepath.Join(destDir, filepath.Base(fileName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(t.api.Token), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return dest, nil
}

func (t *Telegram) Latency(_ context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := t.api.GetMe(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Run consumes the long-poll update stream until ctx is canceled. Each update is
// handled synchronously, which preserves per-user event ordering; long work
// (broadcasts, relays) is backgrounded by the handler itself.
func (t *Telegram) Run(ctx context.Context, h Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.api.GetUpdatesChan(u)
	slog.Info("update poller started")
	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			slog.Info("update poller stopped")
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			uctx := telemetry.WithCorrelation(ctx, uuid.NewString())
			switch {
			case upd.Message != nil && upd.Message.From != nil:
				h.HandleMessage(uctx, normalizeMessage(upd.Message))
			case upd.CallbackQuery != nil:
				cb := upd.CallbackQuery
				// Ack immediately so the client stops its spinner.
				if _, err := t.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
					slog.Warn("callback ack failed", slog.Any("err", err))
				}
				if c, ok := normalizeCallback(cb); ok {
					h.HandleCallback(uctx, c)
				}
			}
		}
	}
}

func normalizeMessage(m *tgbotapi.Message) Message {
	out := Message{
		UserID:  m.From.ID,
		ChatID:  m.Chat.ID,
		Text:    m.Text,
		Command: m.Command(),
		Args:    m.CommandArguments(),
	}
	switch {
	case m.Video != nil:
		out.Video = &Video{FileID: m.Video.FileID, FileName: m.Video.FileName, MimeType: m.Video.MimeType}
	case m.Document != nil && acceptedVideoMimes[m.Document.MimeType]:
		out.Video = &Video{FileID: m.Document.FileID, FileName: m.Document.FileName, MimeType: m.Document.MimeType}
	}
	return out
}

// normalizeCallback reduces a callback query to the router's shape. Queries
// missing a sender or an originating message are dropped.
func normalizeCallback(cq *tgbotapi.CallbackQuery) (Callback, bool) {
	if cq == nil || cq.From == nil || cq.Message == nil {
		return Callback{}, false
	}
	return Callback{
		ID:        cq.ID,
		UserID:    cq.From.ID,
		ChatID:    cq.Message.Chat.ID,
		MessageID: cq.Message.MessageID,
		Data:      cq.Data,
	}, true
}

func choiceMarkup(choices []Choice) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(choices))
	for _, c := range choices {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
