package whitelist

import (
	"strings"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// Checker matches senders that are exempt from triage. Entries containing
// "@" match a full address; other entries match the sender's domain.
type Checker struct {
	addresses map[string]struct{}
	domains   map[string]struct{}
	logger    *zap.Logger
}

// NewChecker creates a new sender checker
func NewChecker(entries []string, logger *zap.Logger) *Checker {
	c := &Checker{
		addresses: make(map[string]struct{}),
		domains:   make(map[string]struct{}),
		logger:    logger,
	}

	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
		case strings.Contains(entry, "@"):
			c.addresses[entry] = struct{}{}
		default:
			c.domains[strings.TrimPrefix(entry, "@")] = struct{}{}
		}
	}

	if len(entries) > 0 && logger != nil {
		logger.Info("Initialized ignored sender checker",
			zap.Int("addresses", len(c.addresses)),
			zap.Int("domains", len(c.domains)))
	}

	return c
}

// Ignores reports whether the sender in a From header is exempt from triage
func (c *Checker) Ignores(from string) bool {
	if len(c.addresses) == 0 && len(c.domains) == 0 {
		return false
	}

	address := senderAddress(from)
	if address == "" {
		return false
	}
	if _, ok := c.addresses[address]; ok {
		c.debug("Sender address is ignored", address)
		return true
	}

	at := strings.LastIndex(address, "@")
	if at < 0 {
		return false
	}
	if _, ok := c.domains[address[at+1:]]; ok {
		c.debug("Sender domain is ignored", address)
		return true
	}
	return false
}

func (c *Checker) debug(msg, address string) {
	if c.logger != nil {
		c.logger.Debug(msg, zap.String("sender", address))
	}
}

// senderAddress returns the lowercased address of a From header, falling
// back to the raw value when it does not parse
func senderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	from = strings.TrimSpace(from)
	if i := strings.LastIndex(from, "<"); i >= 0 {
		from = strings.TrimSuffix(from[i+1:], ">")
	}
	return strings.ToLower(strings.TrimSpace(from))
}
