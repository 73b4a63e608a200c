package commerce

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncOperation is the kind of sync attempt being logged
type SyncOperation string

const (
	SyncOperationCreate SyncOperation = "create"
	SyncOperationUpdate SyncOperation = "update"
	SyncOperationDelete SyncOperation = "delete"
	SyncOperationSync   SyncOperation = "sync"
)

// SyncLogStatus is the outcome of a logged sync attempt
type SyncLogStatus string

const (
	SyncLogSuccess SyncLogStatus = "success"
	SyncLogError   SyncLogStatus = "error"
	SyncLogPending SyncLogStatus = "pending"
)

// Entity types written to the sync log
const (
	EntityTypeProductMapping = "product_mapping"
	EntityTypeVariant        = "variant"
)

// SyncLogEntry is an append-only audit record of one sync attempt
type SyncLogEntry struct {
	ID            uuid.UUID
	OperationType SyncOperation
	EntityType    string
	EntityID      string
	Status        SyncLogStatus
	ErrorMessage  string
	CreatedAt     time.Time
}

// NewSyncLogEntry creates a log entry stamped with the current time
func NewSyncLogEntry(op SyncOperation, entityType, entityID string, status SyncLogStatus, errMsg string) (*SyncLogEntry, error) {
	switch op {
	case SyncOperationCreate, SyncOperationUpdate, SyncOperationDelete, SyncOperationSync:
	default:
		return nil, fmt.Errorf("%w: operation %q", ErrInvalidSyncLogEntry, op)
	}
	switch status {
	case SyncLogSuccess, SyncLogError, SyncLogPending:
	default:
		return nil, fmt.Errorf("%w: status %q", ErrInvalidSyncLogEntry, status)
	}
	if entityType == "" {
		return nil, fmt.Errorf("%w: entity type is required", ErrInvalidSyncLogEntry)
	}
	return &SyncLogEntry{
		ID:            uuid.New(),
		OperationType: op,
		EntityType:    entityType,
		EntityID:      entityID,
		Status:        status,
		ErrorMessage:  errMsg,
		CreatedAt:     time.Now(),
	}, nil
}

// SyncLogRepository appends and reads sync log entries. There is no update or delete.
type SyncLogRepository interface {
	Append(ctx context.Context, entry *SyncLogEntry) error
	ListRecent(ctx context.Context, limit int) ([]SyncLogEntry, error)
	ListByEntity(ctx context.Context, entityType, entityID string) ([]SyncLogEntry, error)
}
