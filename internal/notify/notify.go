// Package notify publishes inventory events after a workflow commits.
// Publishing never fails the caller; delivery problems are only logged.
package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	RequestCreated     EventType = "request.created"
	RequestApproved    EventType = "request.approved"
	RequestRejected    EventType = "request.rejected"
	RequestDistributed EventType = "request.distributed"
	PurchaseCompleted  EventType = "purchase.completed"
	OpnameApproved     EventType = "opname.approved"
	StockLow           EventType = "stock.low"
)

type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Subject    string    `json:"subject"`
	SubjectID  int64     `json:"subject_id"`
	Actor      int64     `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

func NewEvent(typ EventType, subject string, subjectID, actor int64, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Subject:    subject,
		SubjectID:  subjectID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// LogPublisher stands in when no broker is configured.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) {
	p.log.WithFields(logrus.Fields{
		"event":      event.Type,
		"event_id":   event.ID,
		"subject":    event.Subject,
		"subject_id": event.SubjectID,
	}).Info("event")
}

func (p *LogPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each event as JSON keyed by subject id. Writes run in
// their own goroutine with a background deadline so a cancelled request
// context does not drop them.
type KafkaPublisher struct {
	writer  messageWriter
	log     logrus.FieldLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewKafkaPublisher(brokers []string, topic string, log logrus.FieldLogger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, log)
}

func newKafkaPublisher(writer messageWriter, log logrus.FieldLogger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log, timeout: 5 * time.Second}
}

func (p *KafkaPublisher) Publish(_ context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).WithField("event", event.Type).Warn("event not encodable")
		return
	}
	msg := kafka.Message{
		Key:   []byte(event.Subject + ":" + strconv.FormatInt(event.SubjectID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{
				"event":    event.Type,
				"event_id": event.ID,
			}).Warn("event publish failed")
		}
	}()
}

// Close waits for in-flight writes before closing the writer.
func (p *KafkaPublisher) Close() error {
	p.wg.Wait()
	return p.writer.Close()
}
