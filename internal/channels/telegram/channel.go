// Package telegram implements the Channel contract against the Telegram
// Bot API using long polling, via github.com/mymmrac/telego.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mymmrac/telego"

	"github.com/opslane/agentd/internal/canon"
	"github.com/opslane/agentd/internal/channels"
	"github.com/opslane/agentd/internal/config"
	"github.com/opslane/agentd/internal/filters"
)

const (
	defaultPollingTimeoutSeconds = 30
	initialBackoff               = time.Second
	maxBackoff                   = 30 * time.Second
	typingDebounce               = 4 * time.Second
)

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.BaseChannel

	bot   *telego.Bot
	token string

	pollingTimeoutSeconds int
	allowedUpdates        []string
	filter                filters.Filter

	typingLimiters sync.Map // chatId string -> *rate.Limiter

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New constructs a Telegram channel from cfg. The bot connects lazily on
// Connect.
func New(id string, cfg config.TelegramConfig) (*Channel, error) {
	var opts []telego.BotOption
	if cfg.BaseUrl != "" {
		opts = append(opts, telego.WithAPIServer(cfg.BaseUrl))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}

	pollingTimeout := cfg.PollingTimeout
	if pollingTimeout <= 0 {
		pollingTimeout = defaultPollingTimeoutSeconds
	}

	return &Channel{
		BaseChannel:           channels.NewBaseChannel(id, "telegram"),
		bot:                   bot,
		token:                 cfg.Token,
		pollingTimeoutSeconds: pollingTimeout,
		allowedUpdates:        cfg.AllowedUpdates,
		filter:                filters.UserAllowlist(cfg.AllowFrom, telegramAuthorID),
	}, nil
}

// Connect starts the long-polling loop in the background.
func (c *Channel) Connect(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(context.Background())
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	c.SetStatus(channels.StatusConnecting, nil)
	go c.pollLoop(pollCtx)
	c.SetStatus(channels.StatusConnected, nil)
	return nil
}

// Disconnect cancels the in-flight long-poll request and waits for the
// polling goroutine to exit.
func (c *Channel) Disconnect(ctx context.Context) error {
	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
		case <-ctx.Done():
		}
	}
	c.SetStatus(channels.StatusDisconnected, nil)
	return nil
}

// pollLoop issues long-poll requests with offset = lastSeen+1, delivering
// each update through the configured filter and then the canonical mapper.
// API errors emit a recoverable channel_error lifecycle event and back off
// from 1s, doubling up to maxBackoff; cancellation aborts the in-flight
// request and exits the loop.
func (c *Channel) pollLoop(ctx context.Context) {
	defer close(c.pollDone)

	offset := 0
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		params := &telego.GetUpdatesParams{
			Offset:  offset,
			Timeout: c.pollingTimeoutSeconds,
		}
		if len(c.allowedUpdates) > 0 {
			params.AllowedUpdates = c.allowedUpdates
		}

		updates, err := c.bot.GetUpdates(ctx, params)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.SetStatus(channels.StatusError, fmt.Errorf("telegram: poll updates: %w", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = initialBackoff
		if c.Status() != channels.StatusConnected {
			c.SetStatus(channels.StatusConnected, nil)
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if c.filter != nil && !c.filter(u) {
				continue
			}
			if ev, ok := mapUpdate(u); ok {
				c.EmitInbound(ev)
			}
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// telegramAuthorID extracts the sending user id from a raw telego.Update
// for use with filters.UserAllowlist.
func telegramAuthorID(raw interface{}) (string, bool) {
	u, ok := raw.(telego.Update)
	if !ok {
		return "", false
	}
	switch {
	case u.Message != nil && u.Message.From != nil:
		return strconv.FormatInt(u.Message.From.ID, 10), true
	case u.EditedMessage != nil && u.EditedMessage.From != nil:
		return strconv.FormatInt(u.EditedMessage.From.ID, 10), true
	case u.CallbackQuery != nil:
		return strconv.FormatInt(u.CallbackQuery.From.ID, 10), true
	default:
		return "", false
	}
}

// FetchMedia resolves ref.Id to a download URL via getFile and streams the
// response body.
func (c *Channel) FetchMedia(ctx context.Context, ref canon.Reference) (io.ReadCloser, error) {
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: ref.Id})
	if err != nil {
		return nil, fmt.Errorf("telegram: get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("telegram: file %q has no path", ref.Id)
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", c.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("telegram: download failed with status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
