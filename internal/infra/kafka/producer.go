package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var (
	ErrProducerClosed = errors.New("kafka producer closed")
	// ErrInboxFull means the message was dropped because the buffer is full.
	ErrInboxFull = errors.New("kafka producer inbox full")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages and writes them from a single loop.
// Publish never waits: when the buffer is full the message is dropped
// with ErrInboxFull and the caller logs it.
type Producer struct {
	w      messageWriter
	inbox  chan kafka.Message
	closed chan struct{}
	log    *zap.Logger
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}, buf, log)
}

func newProducer(w messageWriter, buf int, log *zap.Logger) *Producer {
	return &Producer{
		w:      w,
		inbox:  make(chan kafka.Message, buf),
		closed: make(chan struct{}),
		log:    log,
	}
}

// Run writes until ctx is done, then flushes what is still buffered.
func (p *Producer) Run(ctx context.Context) error {
	defer close(p.closed)
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return p.w.Close()
		case m := <-p.inbox:
			p.write(context.Background(), m)
		}
	}
}

// Done is closed once Run has flushed and closed the writer.
func (p *Producer) Done() <-chan struct{} { return p.closed }

func (p *Producer) flush() {
	for {
		select {
		case m := <-p.inbox:
			p.write(context.Background(), m)
		default:
			return
		}
	}
}

func (p *Producer) write(ctx context.Context, m kafka.Message) {
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("kafka write failed",
			zap.ByteString("key", m.Key),
			zap.Error(err))
	}
}

func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case <-p.closed:
		return ErrProducerClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.inbox <- m:
		return nil
	default:
		return ErrInboxFull
	}
}
