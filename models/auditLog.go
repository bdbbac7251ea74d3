package models

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/config"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	AuditActionUpdate    = "UPDATE"
	AuditActionReconcile = "RECONCILE"
)

// AuditLog is append-only.
type AuditLog struct {
	ID            int       `gorm:"primary_key" json:"id"`
	UserId        int       `gorm:"index;not null;default:0" json:"user_id"`
	ActionType    string    `gorm:"size:20;not null" json:"action_type"`
	TableName     string    `gorm:"column:table_name;size:64;not null;index" json:"table_name"`
	RecordId      string    `gorm:"size:64;index" json:"record_id"`
	ChangedData   string    `gorm:"type:text" json:"changed_data"`
	CorrelationId string    `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// NewAuditLog fills the actor and correlation id from ctx.
func NewAuditLog(ctx context.Context, actionType string, tableName string, recordId string, changed any) AuditLog {
	b, _ := json.Marshal(changed)
	userId, _ := utils.GetUserIdFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	return AuditLog{
		UserId:        userId,
		ActionType:    actionType,
		TableName:     tableName,
		RecordId:      recordId,
		ChangedData:   string(b),
		CorrelationId: correlationId,
		CreatedAt:     time.Now().UTC(),
	}
}

// AuditSink records entries without blocking the caller. Failures are logged,
// never returned.
type AuditSink interface {
	Record(ctx context.Context, entry AuditLog)
	Close() error
}

type NoopAuditSink struct{}

func (NoopAuditSink) Record(context.Context, AuditLog) {}
func (NoopAuditSink) Close() error                     { return nil }

// DBAuditSink appends to audit_logs from a background goroutine.
type DBAuditSink struct {
	db      *gorm.DB
	logger  *logrus.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDBAuditSink(db *gorm.DB, logger *logrus.Logger) *DBAuditSink {
	return &DBAuditSink{db: db, logger: logger, timeout: 10 * time.Second}
}

func (s *DBAuditSink) Record(ctx context.Context, entry AuditLog) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// detached from the request so a finished response does not cancel the write
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.db.WithContext(writeCtx).Create(&entry).Error; err != nil {
			config.LogError(s.logger, "auditLog.go", "DBAuditSink.Record", "insert audit log", entry, err)
		}
	}()
}

// Close waits for in-flight writes.
func (s *DBAuditSink) Close() error {
	s.wg.Wait()
	return nil
}
