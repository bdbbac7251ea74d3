package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/config"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
)

// PubSubAuditSink publishes audit entries as JSON to a Pub/Sub topic.
type PubSubAuditSink struct {
	topic   *pubsub.Topic
	logger  *logrus.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewPubSubAuditSink resolves AUDIT_TOPIC on client, creating it if needed.
func NewPubSubAuditSink(ctx context.Context, client *pubsub.Client, logger *logrus.Logger) (*PubSubAuditSink, error) {
	topic, err := config.CreateTopicIfNotExists(ctx, client, config.AuditTopicName())
	if err != nil {
		return nil, err
	}
	return &PubSubAuditSink{topic: topic, logger: logger, timeout: 30 * time.Second}, nil
}

func (s *PubSubAuditSink) Record(ctx context.Context, entry models.AuditLog) {
	data, err := json.Marshal(entry)
	if err != nil {
		config.LogError(s.logger, "auditPublisher.go", "PubSubAuditSink.Record", "marshal audit log", entry, err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	result := s.topic.Publish(pubCtx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"table_name":     entry.TableName,
			"action_type":    entry.ActionType,
			"correlation_id": entry.CorrelationId,
		},
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if _, err := result.Get(pubCtx); err != nil {
			config.LogError(s.logger, "auditPublisher.go", "PubSubAuditSink.Record", "publish audit log", entry, err)
		}
	}()
}

// Close waits for pending publishes, then flushes the topic.
func (s *PubSubAuditSink) Close() error {
	s.wg.Wait()
	s.topic.Stop()
	return nil
}
