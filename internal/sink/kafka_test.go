package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
)

type fakeWriter struct {
	batches [][]kafka.Message
	closed  bool
	err     error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]kafka.Message(nil), msgs...))
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaBatches(t *testing.T) {
	w := &fakeWriter{}
	k := NewKafka(w, "session-1", 3)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		if err := k.Append(ctx, record(i)); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if len(w.batches) != 2 {
		t.Fatalf("got %d batches before close, want 2", len(w.batches))
	}
	if err := k.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(w.batches) != 3 || len(w.batches[2]) != 1 || !w.closed {
		t.Fatalf("close should flush the tail and close the writer: %d batches, closed %v", len(w.batches), w.closed)
	}

	msg := w.batches[0][0]
	if string(msg.Key) != "1001" {
		t.Errorf("key = %s, want nonce 1001", msg.Key)
	}
	var body struct {
		Session string `json:"session"`
		Round   int    `json:"round"`
		Nonce   uint64 `json:"nonce"`
		Outcome string `json:"outcome"`
		Wager   string `json:"wager"`
	}
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		t.Fatal(err)
	}
	if body.Session != "session-1" || body.Round != 1 || body.Nonce != 1001 || body.Outcome != "win" || body.Wager != "0.0016" {
		t.Errorf("message body = %+v", body)
	}

	if err := k.Append(ctx, record(8)); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("Append after Close = %v", err)
	}
}

func TestKafkaWriteError(t *testing.T) {
	errBroker := errors.New("broker down")
	k := NewKafka(&fakeWriter{err: errBroker}, "", 1)
	if err := k.Append(context.Background(), record(1)); !errors.Is(err, errBroker) {
		t.Errorf("Append error = %v, want broker down", err)
	}
}

func TestMulti(t *testing.T) {
	var order []string
	a := appenderFunc(func(context.Context, betting.RoundRecord) error { order = append(order, "a"); return nil })
	boom := errors.New("boom")
	b := appenderFunc(func(context.Context, betting.RoundRecord) error { order = append(order, "b"); return boom })
	c := appenderFunc(func(context.Context, betting.RoundRecord) error { order = append(order, "c"); return nil })

	err := Multi{a, b, c}.Append(context.Background(), record(1))
	if !errors.Is(err, boom) {
		t.Errorf("Multi error = %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("call order = %v", order)
	}
}

type appenderFunc func(context.Context, betting.RoundRecord) error

func (f appenderFunc) Append(ctx context.Context, rec betting.RoundRecord) error { return f(ctx, rec) }
