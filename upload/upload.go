// Package upload routes a downloaded video file to the user's chosen destination:
// back through the chat transport as a document, or to the external Hydrax host.
// The local temp file is removed after every dispatch, success or not.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/valtero/relaybot/settings"
	"github.com/valtero/relaybot/telemetry"
)

// InlineUploader sends a local file back into the originating chat as a document.
// Implemented by the chat transport.
type InlineUploader interface {
	SendDocument(ctx context.Context, chatID int64, path, fileName string) error
}

// ExternalUploader pushes a local file to an external host and returns an opaque
// locator string. Implemented by the Hydrax client.
type ExternalUploader interface {
	Upload(ctx context.Context, credential, path, fileName string) (string, error)
}

// Request describes one relay of an already-downloaded file.
type Request struct {
	UserID     int64
	ChatID     int64
	Path       string
	FileName   string
	Server     string
	Credential string
}

// Result is what the caller reports back to the user.
type Result struct {
	// Locator is the external host's reference for the file. Empty for inline
	// dispatches, where the document itself is the response.
	Locator string
}

// Dispatcher routes relay requests to the configured uploaders.
type Dispatcher struct {
	Inline   InlineUploader
	External ExternalUploader
}

// Dispatch relays the file per req.Server and removes the temp file before
// returning, regardless of outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	defer removeTemp(ctx, req.Path)

	start := time.Now()
	res, err := d.dispatch(ctx, req)
	telemetry.UploadDuration.Observe(time.Since(start).Seconds())

	log := telemetry.LoggerWithCorr(ctx).With(
		slog.Int64("user_id", req.UserID),
		slog.String("server", req.Server),
		slog.String("file", req.FileName),
		slog.String("component", "upload"))
	if err != nil {
		telemetry.UploadsFailed.Inc()
		log.Error("relay failed", slog.Any("err", err))
		return Result{}, err
	}
	telemetry.UploadsSucceeded.Inc()
	log.Info("relay complete", slog.Duration("took", time.Since(start)))
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (Result, error) {
	switch req.Server {
	case settings.ServerTelegram, "":
		if d.Inline == nil {
			return Result{}, errors.New("inline uploader not configured")
		}
		if err := d.Inline.SendDocument(ctx, req.ChatID, req.Path, req.FileName); err != nil {
			return Result{}, fmt.Errorf("send document: %w", err)
		}
		return Result{}, nil
	case settings.ServerHydrax:
		if d.External == nil {
			return Result{}, errors.New("external uploader not configured")
		}
		locator, err := d.External.Upload(ctx, req.Credential, req.Path, req.FileName)
		if err != nil {
			return Result{}, fmt.Errorf("external upload: %w", err)
		}
		return Result{Locator: locator}, nil
	default:
		return Result{}, fmt.Errorf("unknown upload server %q", req.Server)
	}
}

func removeTemp(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		telemetry.LoggerWithCorr(ctx).Warn("failed to remove temp file",
			slog.String("path", path), slog.Any("err", err))
	}
}
