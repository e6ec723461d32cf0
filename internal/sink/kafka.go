package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
)

// DefaultKafkaBatch is the number of records sent per WriteMessages call.
const DefaultKafkaBatch = 500

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer for a comma separated broker list.
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
	}
}

// kafkaRecord is the message body; it carries the session so consumers
// can tell runs apart.
type kafkaRecord struct {
	Session string `json:"session,omitempty"`
	betting.RoundRecord
}

// Kafka publishes one JSON message per record, keyed by nonce. Messages are
// buffered and sent in batches; Append blocks while a batch is in flight.
type Kafka struct {
	w       MessageWriter
	session string
	batch   int
	pending []kafka.Message
	closed  bool
}

// NewKafka wraps w. session tags every message and may be empty.
func NewKafka(w MessageWriter, session string, batch int) *Kafka {
	if batch <= 0 {
		batch = DefaultKafkaBatch
	}
	return &Kafka{
		w:       w,
		session: session,
		batch:   batch,
		pending: make([]kafka.Message, 0, batch),
	}
}

// Append implements Appender.
func (k *Kafka) Append(ctx context.Context, rec betting.RoundRecord) error {
	if k.closed {
		return ErrSinkClosed
	}
	value, err := json.Marshal(kafkaRecord{Session: k.session, RoundRecord: rec})
	if err != nil {
		return fmt.Errorf("sink: kafka encode: %w", err)
	}
	k.pending = append(k.pending, kafka.Message{
		Key:   []byte(strconv.FormatUint(rec.Nonce, 10)),
		Value: value,
		Time:  time.Now(),
	})
	if len(k.pending) >= k.batch {
		return k.Flush(ctx)
	}
	return nil
}

// Flush sends every buffered message.
func (k *Kafka) Flush(ctx context.Context) error {
	if len(k.pending) == 0 {
		return nil
	}
	if err := k.w.WriteMessages(ctx, k.pending...); err != nil {
		return fmt.Errorf("sink: kafka write %d messages: %w", len(k.pending), err)
	}
	k.pending = k.pending[:0]
	return nil
}

// Close flushes the remaining batch and closes the writer.
func (k *Kafka) Close(ctx context.Context) error {
	if k.closed {
		return nil
	}
	k.closed = true
	flushErr := k.Flush(ctx)
	if err := k.w.Close(); err != nil && flushErr == nil {
		return fmt.Errorf("sink: kafka close: %w", err)
	}
	return flushErr
}
