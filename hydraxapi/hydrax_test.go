package hydraxapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valtero/relaybot/testutil"
)

func writeTempVideo(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestUploadSuccess(t *testing.T) {
	var gotPath, gotField, gotFilename, gotPartType string
	var gotContent []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		mr, err := r.MultipartReader()
		if err != nil {
			t.Errorf("not multipart: %v", err)
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		part, err := mr.NextPart()
		if err != nil {
			t.Errorf("no part: %v", err)
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		gotField = part.FormName()
		gotFilename = part.FileName()
		gotPartType = part.Header.Get("Content-Type")
		gotContent, _ = io.ReadAll(part)
		_, _ = w.Write([]byte("slug-xyz\n"))
	}))
	t.Cleanup(srv.Close)

	c := &Client{BaseURL: srv.URL}
	locator, err := c.Upload(context.Background(), "my-api-id", writeTempVideo(t, "video-bytes"), "clip.mp4")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if locator != "slug-xyz" {
		t.Errorf("locator = %q, want slug-xyz", locator)
	}
	if gotPath != "/my-api-id" {
		t.Errorf("request path = %q, want /my-api-id", gotPath)
	}
	if gotField != "file" {
		t.Errorf("form field = %q, want file", gotField)
	}
	if gotFilename != "clip.mp4" {
		t.Errorf("filename = %q, want clip.mp4", gotFilename)
	}
	if gotPartType != "video/mp4" {
		t.Errorf("part content type = %q, want video/mp4", gotPartType)
	}
	if string(gotContent) != "video-bytes" {
		t.Errorf("uploaded content = %q", gotContent)
	}
}

func TestUploadNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := &Client{BaseURL: srv.URL}
	_, err := c.Upload(context.Background(), "my-api-id", writeTempVideo(t, "x"), "clip.mp4")
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error should carry status: %v", err)
	}
}

func TestUploadMissingFile(t *testing.T) {
	c := &Client{BaseURL: "http://localhost:1"}
	_, err := c.Upload(context.Background(), "cred", filepath.Join(t.TempDir(), "absent.mp4"), "absent.mp4")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestUploadAgainstSharedMock(t *testing.T) {
	mock := testutil.NewMockHydraxServer(t)
	mock.Locator = "shared-slug"

	c := &Client{BaseURL: mock.URL}
	locator, err := c.Upload(context.Background(), "cred-1", writeTempVideo(t, "abc"), "clip.mp4")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if locator != "shared-slug" {
		t.Errorf("locator = %q", locator)
	}
	if got := mock.Credentials(); len(got) != 1 || got[0] != "cred-1" {
		t.Errorf("credentials = %v, want [cred-1]", got)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("request count = %d, want 1", mock.RequestCount())
	}
	if sizes := mock.BodySizes(); len(sizes) != 1 || sizes[0] == 0 {
		t.Errorf("body sizes = %v, want one non-empty upload body", sizes)
	}
}

func TestUploadEmptyCredential(t *testing.T) {
	c := &Client{}
	if _, err := c.Upload(context.Background(), "", "whatever", "f.mp4"); err == nil {
		t.Fatal("expected error for empty credential")
	}
}
