package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func bufferLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	return log, &buf
}

func TestKafkaPublisherWritesEvent(t *testing.T) {
	writer := &recordingWriter{}
	log, _ := bufferLogger()
	p := newKafkaPublisher(writer, log)

	event := NewEvent(RequestCreated, "request", 12, 40, map[string]string{"number": "RQ-20260301-ABCDEF12"})
	p.Publish(context.Background(), event)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(writer.msgs) != 1 || !writer.closed {
		t.Fatalf("messages %d, closed %v", len(writer.msgs), writer.closed)
	}
	msg := writer.msgs[0]
	if string(msg.Key) != "request:12" {
		t.Fatalf("key = %q", msg.Key)
	}
	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != event.ID || decoded.Type != RequestCreated || decoded.Actor != 40 {
		t.Fatalf("unexpected event %+v", decoded)
	}
}

func TestKafkaPublisherSwallowsFailures(t *testing.T) {
	writer := &recordingWriter{err: errors.New("leader not available")}
	log, buf := bufferLogger()
	p := newKafkaPublisher(writer, log)

	p.Publish(context.Background(), NewEvent(StockLow, "item", 3, 10, nil))
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("event publish failed")) {
		t.Fatalf("failure not logged: %s", buf.String())
	}
}

func TestLogPublisher(t *testing.T) {
	log, buf := bufferLogger()
	p := NewLogPublisher(log)
	p.Publish(context.Background(), NewEvent(OpnameApproved, "stock_opname", 5, 20, nil))
	if !bytes.Contains(buf.Bytes(), []byte(`"event":"opname.approved"`)) {
		t.Fatalf("event not logged: %s", buf.String())
	}
}
