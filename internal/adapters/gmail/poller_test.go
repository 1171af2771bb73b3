package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/mikey/mail-triage/internal/adapters/store"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/rules"
)

type fakeMailbox struct {
	mu       sync.Mutex
	ids      []string
	messages map[string]*gmailapi.Message
	threads  map[string]*gmailapi.Thread
	account  string
	listed   int
	fetched  int
}

func (f *fakeMailbox) ListMessageIDs(_ context.Context, _ string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	if len(f.ids) > limit {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, id string) (*gmailapi.Message, error) {
	f.mu.Lock()
	f.fetched++
	f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return msg, nil
}

func (f *fakeMailbox) GetThread(_ context.Context, id string) (*gmailapi.Thread, error) {
	thread, ok := f.threads[id]
	if !ok {
		return nil, errors.New("thread not found")
	}
	return thread, nil
}

func (f *fakeMailbox) AccountAddress(context.Context) (string, error) {
	if f.account == "" {
		return "", errors.New("no profile")
	}
	return f.account, nil
}

func (f *fakeMailbox) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched
}

func (f *fakeMailbox) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed
}

func message(id, thread, from, subject, body string) *gmailapi.Message {
	return &gmailapi.Message{
		Id:       id,
		ThreadId: thread,
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: from},
				{Name: "Subject", Value: subject},
			},
			Body: &gmailapi.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))},
		},
	}
}

func threadMessage(date int64, from string, labels ...string) *gmailapi.Message {
	return &gmailapi.Message{
		InternalDate: date,
		LabelIds:     labels,
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{{Name: "From", Value: from}},
		},
	}
}

func newTestPoller(t *testing.T, box Mailbox) (*Poller, *store.MemoryStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	r, err := rules.LoadFile("../../rules/testdata/rules.yaml")
	require.NoError(t, err)

	records := store.NewMemoryStore(logger, 0)
	t.Cleanup(records.Stop)

	service := core.NewTriageService(core.NewClassifier(r), records, nil, nil, logger, core.ServiceOptions{SkipProcessed: true})
	cfg := config.GmailConfig{
		User:           "me",
		AccountAddress: "Dispatch@MyCarrier.com",
		Query:          "is:unread in:inbox",
		BatchSize:      10,
		PollInterval:   time.Hour,
		Workers:        2,
	}
	return NewPoller(service, box, cfg, logger), records
}

func TestPollTriagesMessages(t *testing.T) {
	box := &fakeMailbox{
		ids: []string{"m1", "m2"},
		messages: map[string]*gmailapi.Message{
			"m1": message("m1", "t1", "Acme Freight <tenders@acmefreight.com>", "RE: Load tender load #123456", "Please confirm"),
			"m2": message("m2", "t2", "Acme Freight <ops@acmefreight.com>", "Load #654321 delivered", "Delivered today"),
		},
		threads: map[string]*gmailapi.Thread{
			"t1": {Messages: []*gmailapi.Message{threadMessage(1, "tenders@acmefreight.com")}},
			"t2": {Messages: []*gmailapi.Message{threadMessage(1, "ops@acmefreight.com")}},
		},
	}
	p, records := newTestPoller(t, box)

	require.NoError(t, p.Poll(context.Background()))

	rec, err := records.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "t1", rec.ThreadID)
	assert.Equal(t, "Load tender load #123456", rec.Subject)
	assert.Equal(t, "Please confirm", rec.CleanReply)
	require.NotNil(t, rec.Classification)
	assert.Equal(t, core.VerdictTrue, rec.Classification.NeedsReply)

	rec, err = records.Get(context.Background(), "m2")
	require.NoError(t, err)
	assert.Equal(t, core.VerdictFalse, rec.Classification.NeedsReply)
}

func TestPollSkipsAnsweredThreads(t *testing.T) {
	box := &fakeMailbox{
		ids: []string{"m1"},
		messages: map[string]*gmailapi.Message{
			"m1": message("m1", "t1", "tenders@acmefreight.com", "Load tender", "Please confirm"),
		},
		threads: map[string]*gmailapi.Thread{
			"t1": {Messages: []*gmailapi.Message{
				threadMessage(1, "tenders@acmefreight.com"),
				threadMessage(2, "Dispatch <dispatch@mycarrier.com>"),
			}},
		},
	}
	p, records := newTestPoller(t, box)

	require.NoError(t, p.Poll(context.Background()))

	rec, err := records.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "t1", rec.ThreadID)
	assert.Nil(t, rec.Classification)

	require.NoError(t, p.Poll(context.Background()))
	assert.Equal(t, 1, box.fetchCount())
}

func TestPollTriagesWhenThreadLookupFails(t *testing.T) {
	box := &fakeMailbox{
		ids: []string{"m1"},
		messages: map[string]*gmailapi.Message{
			"m1": message("m1", "missing", "tenders@acmefreight.com", "Load tender", "Please confirm"),
		},
	}
	p, records := newTestPoller(t, box)

	require.NoError(t, p.Poll(context.Background()))

	_, err := records.Get(context.Background(), "m1")
	assert.NoError(t, err)
}

func TestPollContinuesPastFailedMessages(t *testing.T) {
	box := &fakeMailbox{
		ids: []string{"gone", "m1"},
		messages: map[string]*gmailapi.Message{
			"m1": message("m1", "", "tenders@acmefreight.com", "Load tender", "Please confirm"),
		},
	}
	p, records := newTestPoller(t, box)

	require.NoError(t, p.Poll(context.Background()))

	_, err := records.Get(context.Background(), "m1")
	assert.NoError(t, err)
}

func TestLastMessageFromAccount(t *testing.T) {
	tests := []struct {
		name    string
		thread  *gmailapi.Thread
		account string
		want    bool
	}{
		{name: "nil thread", thread: nil, want: false},
		{name: "empty thread", thread: &gmailapi.Thread{}, want: false},
		{
			name: "sent label",
			thread: &gmailapi.Thread{Messages: []*gmailapi.Message{
				threadMessage(1, "a@acmefreight.com"),
				threadMessage(2, "someone@else.com", "sent"),
			}},
			want: true,
		},
		{
			name: "own address",
			thread: &gmailapi.Thread{Messages: []*gmailapi.Message{
				threadMessage(1, "a@acmefreight.com"),
				threadMessage(2, "Me <Dispatch@mycarrier.com>"),
			}},
			account: "dispatch@mycarrier.com",
			want:    true,
		},
		{
			name: "newest by internal date",
			thread: &gmailapi.Thread{Messages: []*gmailapi.Message{
				threadMessage(5, "a@acmefreight.com"),
				threadMessage(2, "dispatch@mycarrier.com", "SENT"),
			}},
			account: "dispatch@mycarrier.com",
			want:    false,
		},
		{
			name: "no account address",
			thread: &gmailapi.Thread{Messages: []*gmailapi.Message{
				threadMessage(1, "dispatch@mycarrier.com"),
			}},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, lastMessageFromAccount(tc.thread, tc.account))
		})
	}
}

func TestStartStop(t *testing.T) {
	box := &fakeMailbox{account: "dispatch@mycarrier.com"}
	p, _ := newTestPoller(t, box)
	p.cfg.AccountAddress = ""
	p.account = ""

	require.NoError(t, p.Start())
	assert.Eventually(t, func() bool { return box.listCount() >= 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, p.Stop())
	assert.Equal(t, "dispatch@mycarrier.com", p.accountAddress())

	require.NoError(t, p.Stop())
}
