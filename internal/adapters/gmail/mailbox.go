package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Mailbox is the part of the Gmail API used by the poller
type Mailbox interface {
	ListMessageIDs(ctx context.Context, query string, limit int) ([]string, error)
	GetMessage(ctx context.Context, id string) (*gmailapi.Message, error)
	GetThread(ctx context.Context, id string) (*gmailapi.Thread, error)
	AccountAddress(ctx context.Context) (string, error)
}

// APIMailbox implements Mailbox with the Gmail REST API
type APIMailbox struct {
	service *gmailapi.Service
	user    string
}

// NewAPIMailbox authenticates with a stored OAuth token and creates a Gmail
// service. The token file must already exist.
func NewAPIMailbox(ctx context.Context, credentialsFile, tokenFile, user string) (*APIMailbox, error) {
	credentials, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(credentials, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	token, err := loadToken(tokenFile)
	if err != nil {
		return nil, err
	}

	client := oauthCfg.Client(ctx, token)
	service, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &APIMailbox{service: service, user: user}, nil
}

// ListMessageIDs lists up to limit message IDs matching the query
func (m *APIMailbox) ListMessageIDs(ctx context.Context, query string, limit int) ([]string, error) {
	req := m.service.Users.Messages.List(m.user).MaxResults(int64(limit))
	if query != "" {
		req = req.Q(query)
	}

	resp, err := req.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

// GetMessage retrieves a full message by ID
func (m *APIMailbox) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	msg, err := m.service.Users.Messages.Get(m.user, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// GetThread retrieves a thread with message metadata
func (m *APIMailbox) GetThread(ctx context.Context, id string) (*gmailapi.Thread, error) {
	thread, err := m.service.Users.Threads.Get(m.user, id).
		Format("metadata").
		MetadataHeaders("From").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return thread, nil
}

// AccountAddress returns the address of the authenticated account
func (m *APIMailbox) AccountAddress(ctx context.Context) (string, error) {
	profile, err := m.service.Users.GetProfile(m.user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get user profile: %w", err)
	}
	return profile.EmailAddress, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return token, nil
}
