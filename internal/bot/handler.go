package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	units "github.com/docker/go-units"
	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/anydownbot/internal/downloader"
	"github.com/eliseohh/anydownbot/internal/media"
	"github.com/eliseohh/anydownbot/internal/queue"
	"github.com/eliseohh/anydownbot/internal/store"
)

// Downloader is satisfied by *downloader.YTDLP.
type Downloader interface {
	Probe(ctx context.Context, url string) (downloader.Info, error)
	Download(ctx context.Context, url, dir string) (string, error)
}

// History is satisfied by *store.DB.
type History interface {
	Record(ctx context.Context, dl store.Download) (int64, error)
	ChatStats(ctx context.Context, chatID int64) (store.Stats, error)
	Recent(ctx context.Context, chatID int64, limit int) ([]store.Download, error)
}

// Queue is satisfied by *queue.Pool.
type Queue interface {
	Submit(job queue.Job) error
}

// messenger is the part of *tele.Bot used outside a handler's own reply.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

type Config struct {
	Token         string
	PollTimeout   time.Duration
	UploadTimeout time.Duration
	MaxVideoBytes int64
	// TempDir is the parent of per-download scratch directories; empty
	// means os.TempDir().
	TempDir string
}

type Deps struct {
	Downloader Downloader
	History    History
	Queue      Queue
	Logger     *slog.Logger
}

type Bot struct {
	api   *tele.Bot
	msg   messenger
	dl    Downloader
	hist  History
	queue Queue
	log   *slog.Logger
	cfg   Config
}

func New(cfg Config, deps Deps) (*Bot, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
		Client: &http.Client{Timeout: cfg.UploadTimeout},
		OnError: func(err error, c tele.Context) {
			if c != nil && c.Chat() != nil {
				log.Error("bot.handler_error", "chat_id", c.Chat().ID, "err", err)
				return
			}
			log.Error("bot.error", "err", err)
		},
	}

	api, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	b := &Bot{
		api:   api,
		msg:   api,
		dl:    deps.Downloader,
		hist:  deps.History,
		queue: deps.Queue,
		log:   log,
		cfg:   cfg,
	}
	b.register()
	return b, nil
}

// Start polls Telegram until Stop is called.
func (b *Bot) Start() {
	b.log.Info("bot.started", "username", b.api.Me.Username)
	b.api.Start()
}

func (b *Bot) Stop() {
	b.api.Stop()
}

func (b *Bot) register() {
	b.api.Handle("/start", b.handleStart)
	b.api.Handle("/help", b.handleStart)
	b.api.Handle("/stats", b.handleStats)
	b.api.Handle("/history", b.handleHistory)

	// Unregistered commands fall through to OnText; handleText rejects them.
	b.api.Handle(tele.OnText, b.handleText)
}

func welcomeText() string {
	var sb strings.Builder
	sb.WriteString("🎥 Video Download Bot\n\nSend me a link from:\n")
	for _, n := range media.Names() {
		sb.WriteString("- " + n + "\n")
	}
	sb.WriteString("\nI'll download and send you the video!")
	return sb.String()
}

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send(welcomeText())
}

func (b *Bot) handleStats(c tele.Context) error {
	st, err := b.hist.ChatStats(context.Background(), c.Chat().ID)
	if err != nil {
		b.log.Error("bot.stats_failed", "chat_id", c.Chat().ID, "err", err)
		return c.Send(msgUnexpected)
	}
	return c.Send(fmt.Sprintf("📊 Downloads: %d\n✅ Delivered: %d\n❌ Failed: %d\n📦 Sent: %s",
		st.Total, st.Succeeded, st.Failed, units.BytesSize(float64(st.Bytes))))
}

func (b *Bot) handleHistory(c tele.Context) error {
	recent, err := b.hist.Recent(context.Background(), c.Chat().ID, 5)
	if err != nil {
		b.log.Error("bot.history_failed", "chat_id", c.Chat().ID, "err", err)
		return c.Send(msgUnexpected)
	}
	if len(recent) == 0 {
		return c.Send("No downloads yet.")
	}

	var sb strings.Builder
	sb.WriteString("🕘 Recent downloads:\n")
	for _, dl := range recent {
		mark := "✅"
		if dl.Status != store.StatusOK {
			mark = "❌"
		}
		title := dl.Title
		if title == "" {
			title = dl.URL
		}
		fmt.Fprintf(&sb, "%s %s (%s)\n", mark, title, dl.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}
	return c.Send(strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) handleText(c tele.Context) error {
	text := strings.TrimSpace(c.Message().Text)
	if strings.HasPrefix(text, "/") {
		return c.Send("Unknown command. Send /help for usage.")
	}

	url, ok := media.ExtractURL(text)
	if !ok || !media.IsSupported(url) {
		return c.Send(msgUnsupported)
	}

	err := b.queue.Submit(queue.Job{
		Name: url,
		Run: func(ctx context.Context) error {
			return b.process(ctx, c, url)
		},
	})
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		return c.Send(msgBusy)
	case errors.Is(err, queue.ErrStopped):
		return c.Send(msgShuttingDown)
	case err != nil:
		return err
	}
	return nil
}
