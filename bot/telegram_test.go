package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestNormalizeMessage(t *testing.T) {
	m := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 9},
		Text: "hello",
	}
	out := normalizeMessage(m)
	if out.UserID != 7 || out.ChatID != 9 || out.Text != "hello" {
		t.Errorf("normalized = %+v", out)
	}
	if out.Video != nil {
		t.Error("plain text should carry no video")
	}

	m.Video = &tgbotapi.Video{FileID: "v1", FileName: "a.mp4", MimeType: "video/mp4"}
	out = normalizeMessage(m)
	if out.Video == nil || out.Video.FileID != "v1" {
		t.Errorf("video attachment not detected: %+v", out.Video)
	}
}

func TestNormalizeMessageDocumentMimeFilter(t *testing.T) {
	base := tgbotapi.Message{From: &tgbotapi.User{ID: 7}, Chat: &tgbotapi.Chat{ID: 9}}

	accepted := base
	accepted.Document = &tgbotapi.Document{FileID: "d1", FileName: "b.mkv", MimeType: "video/mkv"}
	if out := normalizeMessage(&accepted); out.Video == nil || out.Video.FileID != "d1" {
		t.Errorf("video document not accepted: %+v", out.Video)
	}

	rejected := base
	rejected.Document = &tgbotapi.Document{FileID: "d2", FileName: "c.pdf", MimeType: "application/pdf"}
	if out := normalizeMessage(&rejected); out.Video != nil {
		t.Errorf("non-video document accepted: %+v", out.Video)
	}
}

func TestNormalizeCallback(t *testing.T) {
	full := &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 9}},
		Data:    "ads_yes",
	}
	c, ok := normalizeCallback(full)
	if !ok {
		t.Fatal("well-formed callback rejected")
	}
	if c.UserID != 7 || c.ChatID != 9 || c.MessageID != 3 || c.Data != "ads_yes" {
		t.Errorf("normalized = %+v", c)
	}

	cases := []*tgbotapi.CallbackQuery{
		nil,
		{ID: "cb2", Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 9}}},
		{ID: "cb3", From: &tgbotapi.User{ID: 7}},
	}
	for i, cq := range cases {
		if _, ok := normalizeCallback(cq); ok {
			t.Errorf("case %d: malformed callback accepted", i)
		}
	}
}
