// Package bot wires the chat transport to the relay's domain services: allow-list
// gating, per-user settings, conversational flows, broadcast fan-out, and video relay.
package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/valtero/relaybot/access"
	"github.com/valtero/relaybot/broadcast"
	"github.com/valtero/relaybot/convo"
	"github.com/valtero/relaybot/db"
	"github.com/valtero/relaybot/settings"
	"github.com/valtero/relaybot/telemetry"
	"github.com/valtero/relaybot/upload"
)

// Authorizer is the allow-list surface the router needs.
type Authorizer interface {
	IsAuthorized(ctx context.Context, id int64) (bool, error)
	Add(ctx context.Context, id int64) (access.AddResult, error)
	Remove(ctx context.Context, id int64) (access.RemoveResult, error)
	Snapshot(ctx context.Context) ([]int64, error)
	Count(ctx context.Context) (int, error)
}

// SettingsStore is the per-user preference surface the router needs.
type SettingsStore interface {
	Get(ctx context.Context, userID int64) (settings.Settings, error)
	SetLanguage(ctx context.Context, userID int64, lang string) error
	SetServer(ctx context.Context, userID int64, server string) error
	SetCredential(ctx context.Context, userID int64, credential string) error
}

// EventLog records audit lines and serves the /log export.
type EventLog interface {
	Append(ctx context.Context, event string) error
	Recent(ctx context.Context, limit int) ([]db.EventEntry, error)
}

// StatusStore persists small operational values (last broadcast summary).
type StatusStore interface {
	Set(ctx context.Context, key, value string) error
}

// DBEventLog is the Postgres-backed EventLog.
type DBEventLog struct {
	DB *sql.DB
}

func (l *DBEventLog) Append(ctx context.Context, event string) error {
	return db.LogEvent(ctx, l.DB, event)
}

func (l *DBEventLog) Recent(ctx context.Context, limit int) ([]db.EventEntry, error) {
	return db.RecentEvents(ctx, l.DB, limit)
}

// DBStatusStore is the kv-backed StatusStore.
type DBStatusStore struct {
	DB *sql.DB
}

func (s *DBStatusStore) Set(ctx context.Context, key, value string) error {
	return db.SetKV(ctx, s.DB, key, value)
}

// Bot routes normalized chat updates. Message and callback handling is synchronous;
// broadcasts and file relays run in tracked goroutines so the update loop stays
// responsive. Wait blocks until those goroutines drain.
type Bot struct {
	Transport Transport
	Access    Authorizer
	Settings  SettingsStore
	Convo     *convo.Manager
	Broadcast *broadcast.Engine
	Uploads   *upload.Dispatcher
	Events    EventLog
	Status    StatusStore
	OwnerID   int64
	DataDir   string

	wg sync.WaitGroup
}

// Wait blocks until in-flight broadcasts and relays finish.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// lang resolves the user's display language, falling back to defaults when the
// settings row can't be read.
func (b *Bot) lang(ctx context.Context, userID int64) string {
	st, err := b.Settings.Get(ctx, userID)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("settings read failed, using defaults",
			slog.Int64("user_id", userID), slog.Any("err", err))
	}
	return st.Language
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.Transport.SendMessage(ctx, chatID, text); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("send failed", slog.Int64("chat_id", chatID), slog.Any("err", err))
	}
}

func (b *Bot) logEvent(ctx context.Context, format string, args ...any) {
	if err := b.Events.Append(ctx, fmt.Sprintf(format, args...)); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("event log append failed", slog.Any("err", err))
	}
}

// Yes/no button rows. Labels follow the bot's original bilingual UI, which kept
// these two fixed.
func yesNo(yesData, noData string) []Choice {
	return []Choice{{Label: "✅ Sí", Data: yesData}, {Label: "🚫 No", Data: noData}}
}

// HandleMessage processes one incoming message: allow-list gate, then video relay,
// then active-flow text consumption, then command dispatch.
func (b *Bot) HandleMessage(ctx context.Context, m Message) {
	telemetry.UpdatesHandled.Inc()
	log := telemetry.LoggerWithCorr(ctx).With(slog.Int64("user_id", m.UserID))

	authorized, err := b.Access.IsAuthorized(ctx, m.UserID)
	if err != nil {
		log.Error("authorization check failed", slog.Any("err", err))
		return
	}
	if !authorized {
		telemetry.UnauthorizedDenied.Inc()
		b.reply(ctx, m.ChatID, text(b.lang(ctx, m.UserID), "not_allowed"))
		b.logEvent(ctx, "Denied access to user %d", m.UserID)
		return
	}

	lang := b.lang(ctx, m.UserID)

	if m.Video != nil {
		b.handleVideo(ctx, m, lang)
		return
	}

	// Free text feeds the active flow, when one is expecting it. Commands always
	// bypass this so /cancel works mid-flow.
	if m.Command == "" && b.Convo.ExpectsText(m.UserID) {
		if err := b.Convo.AppendBroadcastPart(m.UserID, m.Text); err == nil {
			if _, err := b.Transport.SendChoice(ctx, m.ChatID, text(lang, "ads_add_more"), yesNo("ads_yes", "ads_no")); err != nil {
				log.Warn("send failed", slog.Any("err", err))
			}
			return
		}
		candidate := strings.TrimSpace(m.Text)
		if err := b.Convo.CaptureCredential(m.UserID, candidate); err == nil {
			prompt := text(lang, "hapi_confirm") + "\n\n" + html.EscapeString(candidate)
			if _, err := b.Transport.SendChoice(ctx, m.ChatID, prompt, yesNo("hapi_yes", "hapi_no")); err != nil {
				log.Warn("send failed", slog.Any("err", err))
			}
			return
		}
		return
	}

	switch m.Command {
	case "":
		// Plain text outside a flow is ignored.
	case "start":
		b.reply(ctx, m.ChatID, text(lang, "welcome"))
		b.logEvent(ctx, "User %d started bot.", m.UserID)
	case "ayuda", "help":
		b.reply(ctx, m.ChatID, text(lang, "help"))
	case "setlang":
		choices := []Choice{{Label: "🇪🇸 Español", Data: "lang_es"}, {Label: "🇺🇸 English", Data: "lang_en"}}
		if _, err := b.Transport.SendChoice(ctx, m.ChatID, text(lang, "setlang"), choices); err != nil {
			log.Warn("send failed", slog.Any("err", err))
		}
	case "server":
		choices := []Choice{
			{Label: text(lang, "server_tg"), Data: "server_tg"},
			{Label: text(lang, "server_hydrax"), Data: "server_hydrax"},
		}
		if _, err := b.Transport.SendChoice(ctx, m.ChatID, text(lang, "server_select"), choices); err != nil {
			log.Warn("send failed", slog.Any("err", err))
		}
	case "add":
		b.handleAdd(ctx, m, lang)
	case "remove":
		b.handleRemove(ctx, m, lang)
	case "log":
		b.handleLog(ctx, m, lang)
	case "ads":
		if m.UserID != b.OwnerID {
			b.reply(ctx, m.ChatID, text(lang, "not_allowed"))
			return
		}
		if replaced := b.Convo.BeginBroadcast(m.UserID); replaced {
			b.logEvent(ctx, "User %d restarted a flow via /ads.", m.UserID)
		}
		b.reply(ctx, m.ChatID, text(lang, "ads_intro"))
	case "hapi":
		if replaced := b.Convo.BeginCredential(m.UserID); replaced {
			b.logEvent(ctx, "User %d restarted a flow via /hapi.", m.UserID)
		}
		b.reply(ctx, m.ChatID, text(lang, "hapi_ask"))
	case "cancel":
		b.Convo.Clear(m.UserID)
		b.reply(ctx, m.ChatID, text(lang, "cancelled"))
		b.logEvent(ctx, "User %d cancelled operation.", m.UserID)
	case "ping":
		d, err := b.Transport.Latency(ctx)
		if err != nil {
			b.reply(ctx, m.ChatID, text(lang, "ping_failed"))
			return
		}
		b.reply(ctx, m.ChatID, textf(lang, "ping", d.Milliseconds()))
	default:
		// Unknown commands are ignored, like any other unsolicited text.
	}
}

func (b *Bot) handleAdd(ctx context.Context, m Message, lang string) {
	if m.UserID != b.OwnerID {
		b.reply(ctx, m.ChatID, text(lang, "not_allowed"))
		return
	}
	uid, err := strconv.ParseInt(strings.TrimSpace(m.Args), 10, 64)
	if err != nil {
		b.reply(ctx, m.ChatID, "Formato inválido. Usa /add <id_usuario>")
		return
	}
	res, err := b.Access.Add(ctx, uid)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("allow-list add failed", slog.Any("err", err))
		return
	}
	if res == access.Added {
		b.reply(ctx, m.ChatID, text(lang, "add_success"))
		b.logEvent(ctx, "User %d added by owner.", uid)
		b.refreshUserGauge(ctx)
	} else {
		b.reply(ctx, m.ChatID, text(lang, "already_allowed"))
	}
}

func (b *Bot) handleRemove(ctx context.Context, m Message, lang string) {
	if m.UserID != b.OwnerID {
		b.reply(ctx, m.ChatID, text(lang, "not_allowed"))
		return
	}
	uid, err := strconv.ParseInt(strings.TrimSpace(m.Args), 10, 64)
	if err != nil {
		b.reply(ctx, m.ChatID, "Formato inválido. Usa /remove <id_usuario>")
		return
	}
	res, err := b.Access.Remove(ctx, uid)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("allow-list remove failed", slog.Any("err", err))
		return
	}
	if res == access.Removed {
		b.reply(ctx, m.ChatID, text(lang, "remove_success"))
		b.logEvent(ctx, "User %d removed by owner.", uid)
		b.refreshUserGauge(ctx)
	} else {
		b.reply(ctx, m.ChatID, text(lang, "not_in_list"))
	}
}

func (b *Bot) refreshUserGauge(ctx context.Context) {
	if n, err := b.Access.Count(ctx); err == nil {
		telemetry.SetAuthorizedUsers(n)
	}
}

func (b *Bot) handleLog(ctx context.Context, m Message, lang string) {
	if m.UserID != b.OwnerID {
		b.reply(ctx, m.ChatID, text(lang, "not_allowed"))
		return
	}
	entries, err := b.Events.Recent(ctx, 500)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("event log read failed", slog.Any("err", err))
		b.reply(ctx, m.ChatID, text(lang, "log_empty"))
		return
	}
	if len(entries) == 0 {
		b.reply(ctx, m.ChatID, text(lang, "log_empty"))
		return
	}
	f, err := os.CreateTemp("", "relay-*.log")
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("log export temp file failed", slog.Any("err", err))
		return
	}
	defer os.Remove(f.Name())
	for _, e := range entries {
		fmt.Fprintf(f, "%s | %s\n", e.At.Format("2006-01-02 15:04:05"), e.Event)
	}
	if err := f.Close(); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("log export write failed", slog.Any("err", err))
		return
	}
	b.reply(ctx, m.ChatID, text(lang, "log_send"))
	if err := b.Transport.SendDocument(ctx, m.ChatID, f.Name(), "bot.log"); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("log export send failed", slog.Any("err", err))
	}
}

// HandleCallback processes one inline-button press. Presses that don't match the
// user's active flow are dropped silently (stale buttons from a replaced or
// finished flow).
func (b *Bot) HandleCallback(ctx context.Context, c Callback) {
	telemetry.UpdatesHandled.Inc()
	log := telemetry.LoggerWithCorr(ctx).With(slog.Int64("user_id", c.UserID))

	authorized, err := b.Access.IsAuthorized(ctx, c.UserID)
	if err != nil {
		log.Error("authorization check failed", slog.Any("err", err))
		return
	}
	if !authorized {
		telemetry.UnauthorizedDenied.Inc()
		b.logEvent(ctx, "Denied access to user %d", c.UserID)
		return
	}

	lang := b.lang(ctx, c.UserID)

	switch c.Data {
	case "lang_es", "lang_en":
		newLang := strings.TrimPrefix(c.Data, "lang_")
		if err := b.Settings.SetLanguage(ctx, c.UserID, newLang); err != nil {
			log.Error("language update failed", slog.Any("err", err))
			return
		}
		if err := b.Transport.EditMessage(ctx, c.ChatID, c.MessageID, text(newLang, "lang_changed")); err != nil {
			log.Warn("edit failed", slog.Any("err", err))
		}
		b.logEvent(ctx, "User %d changed language to %s", c.UserID, newLang)
	case "server_tg", "server_hydrax":
		server := settings.ServerTelegram
		if c.Data == "server_hydrax" {
			server = settings.ServerHydrax
		}
		if err := b.Settings.SetServer(ctx, c.UserID, server); err != nil {
			log.Error("server update failed", slog.Any("err", err))
			return
		}
		label := strings.ToUpper(server[:1]) + server[1:]
		if err := b.Transport.EditMessage(ctx, c.ChatID, c.MessageID, textf(lang, "server_selected", label)); err != nil {
			log.Warn("edit failed", slog.Any("err", err))
		}
		b.logEvent(ctx, "User %d set server to %s", c.UserID, server)
	case "ads_yes":
		if _, err := b.Convo.ChooseMore(c.UserID, true); err != nil {
			b.dropStale(ctx, c, err)
			return
		}
		b.reply(ctx, c.ChatID, text(lang, "ads_intro"))
	case "ads_no":
		parts, err := b.Convo.ChooseMore(c.UserID, false)
		if err != nil {
			b.dropStale(ctx, c, err)
			return
		}
		preview := text(lang, "ads_preview") + "\n\n" + html.EscapeString(strings.Join(parts, "\n")) +
			"\n\n" + text(lang, "ads_send_confirm")
		if err := b.Transport.EditChoice(ctx, c.ChatID, c.MessageID, preview, yesNo("ads_send", "ads_cancel")); err != nil {
			log.Warn("edit failed", slog.Any("err", err))
		}
	case "ads_send":
		parts, err := b.Convo.ConfirmSend(c.UserID, true)
		if err != nil {
			b.dropStale(ctx, c, err)
			return
		}
		b.startBroadcast(ctx, c.ChatID, lang, strings.Join(parts, "\n"))
	case "ads_cancel":
		if _, err := b.Convo.ConfirmSend(c.UserID, false); err != nil {
			b.dropStale(ctx, c, err)
			return
		}
		b.reply(ctx, c.ChatID, text(lang, "cancelled"))
	case "hapi_yes":
		credential, err := b.Convo.ResolveCredential(c.UserID, true)
		if err != nil {
			b.dropStale(ctx, c, err)
			return
		}
		if err := b.Settings.SetCredential(ctx, c.UserID, credential); err != nil {
			log.Error("credential update failed", slog.Any("err", err))
			return
		}
		if err := b.Transport.EditMessage(ctx, c.ChatID, c.MessageID, text(lang, "hapi_ok")); err != nil {
			log.Warn("edit failed", slog.Any("err", err))
		}
		b.logEvent(ctx, "User %d changed Hydrax API.", c.UserID)
	case "hapi_no":
		if _, err := b.Convo.ResolveCredential(c.UserID, false); err != nil {
			b.dropStale(ctx, c, err)
			return
		}
		if err := b.Transport.EditMessage(ctx, c.ChatID, c.MessageID, text(lang, "hapi_cancel")); err != nil {
			log.Warn("edit failed", slog.Any("err", err))
		}
	default:
		log.Debug("unknown callback data", slog.String("data", c.Data))
	}
}

func (b *Bot) dropStale(ctx context.Context, c Callback, err error) {
	if errors.Is(err, convo.ErrStateMismatch) {
		telemetry.LoggerWithCorr(ctx).Debug("stale callback dropped",
			slog.Int64("user_id", c.UserID), slog.String("data", c.Data))
		return
	}
	telemetry.LoggerWithCorr(ctx).Error("flow transition failed", slog.Any("err", err))
}

// startBroadcast snapshots the allow-list and runs the fan-out in the background,
// editing a single status message with throttled progress.
func (b *Bot) startBroadcast(ctx context.Context, chatID int64, lang, content string) {
	snapshot, err := b.Access.Snapshot(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("allow-list snapshot failed", slog.Any("err", err))
		return
	}
	statusID, err := b.Transport.SendMessage(ctx, chatID, text(lang, "ads_sending"))
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("send failed", slog.Any("err", err))
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		res := b.Broadcast.Send(ctx, content, snapshot, func(p broadcast.Progress) {
			if statusID == 0 {
				return
			}
			err := b.Transport.EditMessage(ctx, chatID, statusID,
				textf(lang, "ads_progress", p.Sent, p.Blocked, p.Failed, p.Remaining))
			if err != nil {
				telemetry.LoggerWithCorr(ctx).Warn("progress edit failed", slog.Any("err", err))
			}
		})
		b.reply(ctx, chatID, text(lang, "ads_sent"))
		summary := textf(lang, "ads_summary", res.Sent, res.Blocked, res.Failed)
		b.reply(ctx, chatID, summary)
		b.logEvent(ctx, "Ads sent by owner (%d ok, %d blocked, %d failed)", res.Sent, res.Blocked, res.Failed)
		if b.Status != nil {
			if err := b.Status.Set(ctx, "last_broadcast", summary); err != nil {
				telemetry.LoggerWithCorr(ctx).Warn("status store update failed", slog.Any("err", err))
			}
		}
	}()
}

// handleVideo downloads the attachment and relays it per the user's server choice.
// Download and relay both run in the background; the temp file is removed by the
// dispatcher.
func (b *Bot) handleVideo(ctx context.Context, m Message, lang string) {
	st, err := b.Settings.Get(ctx, m.UserID)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("settings read failed, using defaults",
			slog.Int64("user_id", m.UserID), slog.Any("err", err))
	}
	b.reply(ctx, m.ChatID, text(lang, "uploading"))

	fileName := m.Video.FileName
	if fileName == "" {
		fileName = m.Video.FileID + ".mp4"
	}

	// Download and relay both run off the update loop; a slow transfer for one
	// user must not stall everyone else's commands.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		path, err := b.Transport.Download(ctx, m.Video.FileID, b.DataDir, fileName)
		if err != nil {
			telemetry.LoggerWithCorr(ctx).Error("attachment download failed", slog.Any("err", err))
			b.reply(ctx, m.ChatID, text(lang, "upload_error"))
			return
		}
		b.logEvent(ctx, "User %d uploaded %s (server: %s)", m.UserID, fileName, st.UploadServer)
		res, err := b.Uploads.Dispatch(ctx, upload.Request{
			UserID:     m.UserID,
			ChatID:     m.ChatID,
			Path:       path,
			FileName:   fileName,
			Server:     st.UploadServer,
			Credential: st.HydraxCredential,
		})
		if err != nil {
			b.reply(ctx, m.ChatID, text(lang, "upload_error"))
			return
		}
		msg := text(lang, "upload_complete")
		if res.Locator != "" {
			msg += "\nHydrax: " + html.EscapeString(res.Locator)
		}
		b.reply(ctx, m.ChatID, msg)
	}()
}
