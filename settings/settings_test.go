package settings

import (
	"context"
	"testing"

	"github.com/valtero/relaybot/testutil"
)

func TestDefaults(t *testing.T) {
	store := &Store{OwnerID: 42, FallbackCredential: "fallback-api"}

	owner := store.Defaults(42)
	if owner.Language != "es" {
		t.Errorf("owner default language = %q, want es", owner.Language)
	}
	other := store.Defaults(77)
	if other.Language != "en" {
		t.Errorf("default language = %q, want en", other.Language)
	}
	if other.UploadServer != ServerTelegram {
		t.Errorf("default upload server = %q, want %q", other.UploadServer, ServerTelegram)
	}
	if other.HydraxCredential != "fallback-api" {
		t.Errorf("default credential = %q, want fallback", other.HydraxCredential)
	}
}

func TestGetWithoutRowReturnsDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := &Store{DB: db, OwnerID: 42, FallbackCredential: "fallback-api"}

	got, err := store.Get(context.Background(), 880001)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != store.Defaults(880001) {
		t.Errorf("Get without row = %+v, want defaults", got)
	}
}

func TestSetLanguageRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := &Store{DB: db, OwnerID: 42, FallbackCredential: "fallback-api"}
	const uid = int64(880002)
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM user_settings WHERE user_id=$1`, uid)
	})

	if err := store.SetLanguage(ctx, uid, "es"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	got, err := store.Get(ctx, uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Language != "es" {
		t.Errorf("language = %q, want es", got.Language)
	}
	// Other fields keep defaults
	if got.UploadServer != ServerTelegram {
		t.Errorf("upload server = %q, want default %q", got.UploadServer, ServerTelegram)
	}
}

func TestSetLanguageRejectsUnknown(t *testing.T) {
	store := &Store{}
	if err := store.SetLanguage(context.Background(), 1, "fr"); err == nil {
		t.Error("expected error for unsupported language")
	}
}

func TestSetServerRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := &Store{DB: db, OwnerID: 42, FallbackCredential: "fallback-api"}
	const uid = int64(880003)
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM user_settings WHERE user_id=$1`, uid)
	})

	if err := store.SetServer(ctx, uid, ServerHydrax); err != nil {
		t.Fatalf("SetServer: %v", err)
	}
	got, err := store.Get(ctx, uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UploadServer != ServerHydrax {
		t.Errorf("upload server = %q, want %q", got.UploadServer, ServerHydrax)
	}
}

func TestSetCredentialOverwrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := &Store{DB: db, OwnerID: 42, FallbackCredential: "fallback-api"}
	const uid = int64(880004)
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM user_settings WHERE user_id=$1`, uid)
	})

	if err := store.SetCredential(ctx, uid, "abc123"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	got, err := store.Get(ctx, uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.HydraxCredential != "abc123" {
		t.Errorf("credential = %q, want abc123", got.HydraxCredential)
	}

	if err := store.SetCredential(ctx, uid, "def456"); err != nil {
		t.Fatalf("second SetCredential: %v", err)
	}
	got, err = store.Get(ctx, uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.HydraxCredential != "def456" {
		t.Errorf("credential after rotation = %q, want def456", got.HydraxCredential)
	}
}
