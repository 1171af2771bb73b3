package ports

import "github.com/mikey/mail-triage/internal/core"

// RecordStore is a record repository that owns background resources
type RecordStore interface {
	core.RecordRepository

	// Stop stops background cleanup and releases connections
	Stop()
}
