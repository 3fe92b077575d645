package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/anydownbot/internal/downloader"
	"github.com/eliseohh/anydownbot/internal/logger"
	"github.com/eliseohh/anydownbot/internal/media"
	"github.com/eliseohh/anydownbot/internal/store"
)

const (
	msgUnsupported  = "❌ Unsupported platform. Send links from YouTube/Facebook/Instagram/Twitter only."
	msgBusy         = "⏳ Too many downloads in progress, try again in a minute."
	msgShuttingDown = "🔌 The bot is restarting, try again shortly."
	msgRestricted   = "⚠️ Couldn't download this video. It might be private or age-restricted."
	msgUnexpected   = "❌ An unexpected error occurred. Please try again later."
	msgTooLarge     = "📁 File too large for streaming, sent as document"
)

// process runs on a queue worker: probe, download, upload, record.
func (b *Bot) process(ctx context.Context, c tele.Context, url string) error {
	rec := store.Download{
		ChatID:   c.Chat().ID,
		URL:      url,
		Platform: string(media.PlatformOf(url)),
	}
	if s := c.Sender(); s != nil {
		rec.UserID = s.ID
	}

	log := b.log.With("chat_id", rec.ChatID, "url", url)
	ctx = logger.WithLogger(ctx, log)

	var progress *tele.Message
	err := b.deliver(ctx, c, url, &rec, &progress)
	if err != nil {
		rec.Status = store.StatusFailed
		rec.Error = err.Error()

		var dlErr *downloader.DownloadError
		if errors.As(err, &dlErr) {
			log.Error("download.failed", "exit_code", dlErr.ExitCode, "err", err)
			_ = c.Send(msgRestricted)
		} else {
			log.Error("download.unexpected", "err", err)
			_ = c.Send(msgUnexpected)
		}
		if progress != nil {
			if derr := b.msg.Delete(progress); derr != nil {
				log.Debug("download.progress_delete_failed", "err", derr)
			}
		}
	} else {
		rec.Status = store.StatusOK
		log.Info("download.delivered", "title", rec.Title, "bytes", rec.SizeBytes, "as", rec.Delivery)
	}

	if _, rerr := b.hist.Record(context.WithoutCancel(ctx), rec); rerr != nil {
		log.Error("download.record_failed", "err", rerr)
	}
	return err
}

func (b *Bot) deliver(ctx context.Context, c tele.Context, url string, rec *store.Download, progress **tele.Message) error {
	_ = c.Notify(tele.Typing)

	info, err := b.dl.Probe(ctx, url)
	if err != nil {
		return err
	}
	rec.Title = info.Title
	rec.DurationSec = int(info.Duration)

	title := info.Title
	if title == "" {
		title = "video"
	}
	msg, err := b.msg.Send(c.Chat(), fmt.Sprintf("⏳ Downloading: %s\n⏱ Duration: %d minutes", title, info.DurationMinutes()))
	if err != nil {
		return fmt.Errorf("send progress: %w", err)
	}
	*progress = msg

	dir, err := os.MkdirTemp(b.cfg.TempDir, "anydown-*")
	if err != nil {
		return fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path, err := b.dl.Download(ctx, url, dir)
	if err != nil {
		return err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat download: %w", err)
	}
	rec.SizeBytes = fi.Size()

	_ = c.Notify(tele.UploadingVideo)

	caption := info.Title
	if caption == "" {
		caption = "Downloaded Video"
	}
	if fi.Size() < b.cfg.MaxVideoBytes {
		rec.Delivery = store.DeliveryVideo
		err = c.Send(&tele.Video{
			File:      tele.FromDisk(path),
			FileName:  filepath.Base(path),
			Caption:   "✅ " + caption,
			Streaming: true,
		})
	} else {
		rec.Delivery = store.DeliveryDocument
		err = c.Send(&tele.Document{
			File:     tele.FromDisk(path),
			FileName: filepath.Base(path),
			Caption:  msgTooLarge,
		})
	}
	if err != nil {
		rec.Delivery = store.DeliveryNone
		return fmt.Errorf("upload: %w", err)
	}

	if err := b.msg.Delete(msg); err != nil {
		logger.FromContext(ctx).Debug("download.progress_delete_failed", "err", err)
	}
	*progress = nil
	return nil
}
