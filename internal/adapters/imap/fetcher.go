package imap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/config"
)

// RawMessage is one fetched RFC 5322 message
type RawMessage struct {
	UID  uint32
	Data []byte
}

// Fetcher fetches raw messages received since a point in time
type Fetcher interface {
	FetchSince(ctx context.Context, since time.Time) ([]RawMessage, error)
}

// ClientFetcher implements Fetcher over an IMAPS connection opened per fetch
type ClientFetcher struct {
	cfg    config.IMAPConfig
	logger *zap.Logger
}

// NewClientFetcher creates a new IMAP fetcher
func NewClientFetcher(cfg config.IMAPConfig, logger *zap.Logger) *ClientFetcher {
	return &ClientFetcher{cfg: cfg, logger: logger}
}

// FetchSince logs in, selects the folder read-only and fetches every message
// received since the given time without marking it seen
func (f *ClientFetcher) FetchSince(ctx context.Context, since time.Time) ([]RawMessage, error) {
	addr := net.JoinHostPort(f.cfg.Server, strconv.Itoa(f.cfg.Port))

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			f.logger.Debug("IMAP logout failed", zap.Error(err))
		}
	}()

	stop := context.AfterFunc(ctx, func() { c.Terminate() })
	defer stop()

	if err := c.Login(f.cfg.Username, f.cfg.Password); err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	mbox, err := c.Select(f.cfg.Folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", f.cfg.Folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := goimap.NewSearchCriteria()
	criteria.Since = since

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	f.logger.Debug("Found emails",
		zap.Int("count", len(uids)),
		zap.String("folder", f.cfg.Folder),
		zap.Time("since", since))
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uids...)

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{goimap.FetchUid, section.FetchItem()}

	messages := make(chan *goimap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var raw []RawMessage
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		data, err := io.ReadAll(body)
		if err != nil {
			f.logger.Warn("Failed to read message body", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		raw = append(raw, RawMessage{UID: msg.Uid, Data: data})
	}

	if err := <-done; err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(ctxErr, err)
		}
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return raw, nil
}
