// Package settings stores per-user bot preferences: display language, preferred upload
// server, and the user's Hydrax credential. Rows are created lazily on first read and
// only ever overwritten, never deleted. Credentials are encrypted at rest when
// ENCRYPTION_KEY is set.
package settings

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/valtero/relaybot/crypto"
)

// Upload server values, matching what users pick from the /server menu.
const (
	ServerTelegram = "telegram"
	ServerHydrax   = "hydrax"
)

// Settings is one user's stored preferences, with defaults applied.
type Settings struct {
	UserID           int64
	Language         string
	UploadServer     string
	HydraxCredential string
}

// Store reads and writes user_settings rows. Each read-or-write of a single user's row
// is one atomic statement; there is no cross-user transaction requirement.
type Store struct {
	DB *sql.DB
	// OwnerID selects the default language: the owner defaults to Spanish,
	// everyone else to English.
	OwnerID int64
	// FallbackCredential is the process-wide Hydrax API id used until a user
	// rotates in their own.
	FallbackCredential string
}

var (
	encryptor     crypto.Encryptor
	encryptorOnce sync.Once
	encryptorErr  error
)

// getEncryptor lazily initializes credential encryption from ENCRYPTION_KEY.
// Returns nil (and no error) when encryption is not configured.
func getEncryptor() (crypto.Encryptor, error) {
	encryptorOnce.Do(func() {
		key := os.Getenv("ENCRYPTION_KEY")
		if key == "" {
			slog.Warn("ENCRYPTION_KEY not set, Hydrax credentials will be stored in plaintext (not recommended for production)",
				slog.String("component", "settings_encryption"))
			return
		}
		enc, err := crypto.NewAESEncryptor(key)
		if err != nil {
			encryptorErr = fmt.Errorf("failed to initialize encryption: %w", err)
			slog.Error("encryption initialization failed", slog.Any("error", encryptorErr),
				slog.String("component", "settings_encryption"))
			return
		}
		encryptor = enc
		slog.Info("credential encryption enabled (AES-256-GCM)", slog.String("component", "settings_encryption"))
	})
	if encryptorErr != nil {
		return nil, encryptorErr
	}
	return encryptor, nil
}

// Defaults returns the settings a user has before their first explicit change.
func (s *Store) Defaults(userID int64) Settings {
	lang := "en"
	if userID == s.OwnerID {
		lang = "es"
	}
	return Settings{
		UserID:           userID,
		Language:         lang,
		UploadServer:     ServerTelegram,
		HydraxCredential: s.FallbackCredential,
	}
}

// Get returns the user's settings, applying defaults for missing rows or columns.
func (s *Store) Get(ctx context.Context, userID int64) (Settings, error) {
	out := s.Defaults(userID)
	var lang, server string
	var cred sql.NullString
	var encVersion int
	err := s.DB.QueryRowContext(ctx,
		`SELECT language, upload_server, hydrax_credential, COALESCE(credential_encryption, 0)
		 FROM user_settings WHERE user_id=$1`, userID).Scan(&lang, &server, &cred, &encVersion)
	if err == sql.ErrNoRows {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	if lang != "" {
		out.Language = lang
	}
	if server != "" {
		out.UploadServer = server
	}
	if cred.Valid && cred.String != "" {
		value := cred.String
		if encVersion == 1 {
			enc, encErr := getEncryptor()
			if encErr != nil {
				return out, fmt.Errorf("get encryptor for decryption: %w", encErr)
			}
			if enc == nil {
				return out, fmt.Errorf("credential is encrypted but ENCRYPTION_KEY not configured")
			}
			dec, decErr := crypto.DecryptString(enc, value)
			if decErr != nil {
				return out, fmt.Errorf("decrypt credential: %w", decErr)
			}
			value = dec
		}
		out.HydraxCredential = value
	}
	return out, nil
}

// SetLanguage persists the user's display language ("es" or "en").
func (s *Store) SetLanguage(ctx context.Context, userID int64, lang string) error {
	if lang != "es" && lang != "en" {
		return fmt.Errorf("unsupported language %q", lang)
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO user_settings(user_id, language, updated_at) VALUES($1,$2,NOW())
		 ON CONFLICT(user_id) DO UPDATE SET language=EXCLUDED.language, updated_at=NOW()`,
		userID, lang)
	return err
}

// SetServer persists the user's preferred upload destination.
func (s *Store) SetServer(ctx context.Context, userID int64, server string) error {
	if server != ServerTelegram && server != ServerHydrax {
		return fmt.Errorf("unsupported upload server %q", server)
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO user_settings(user_id, upload_server, updated_at) VALUES($1,$2,NOW())
		 ON CONFLICT(user_id) DO UPDATE SET upload_server=EXCLUDED.upload_server, updated_at=NOW()`,
		userID, server)
	return err
}

// SetCredential persists the user's Hydrax credential, encrypting it when
// ENCRYPTION_KEY is configured. credential_encryption=1 marks encrypted rows;
// plaintext rows (0) remain readable for backward compatibility.
func (s *Store) SetCredential(ctx context.Context, userID int64, credential string) error {
	enc, err := getEncryptor()
	if err != nil {
		return fmt.Errorf("get encryptor: %w", err)
	}
	encVersion := 0
	toStore := credential
	if enc != nil && credential != "" {
		encVersion = 1
		encCred, err := crypto.EncryptString(enc, credential)
		if err != nil {
			return fmt.Errorf("encrypt credential: %w", err)
		}
		toStore = encCred
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO user_settings(user_id, hydrax_credential, credential_encryption, updated_at)
		 VALUES($1,$2,$3,NOW())
		 ON CONFLICT(user_id) DO UPDATE SET
		   hydrax_credential=EXCLUDED.hydrax_credential,
		   credential_encryption=EXCLUDED.credential_encryption,
		   updated_at=NOW()`,
		userID, toStore, encVersion)
	return err
}
