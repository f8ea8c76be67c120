package kafka

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrProducerClosed = errors.New("producer closed")

// Writer is the part of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	w         Writer
	inbox     chan kafka.Message
	quit      chan struct{}
	quitOnce  sync.Once
	closeCh   chan struct{}
	startOnce sync.Once
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return NewProducerFromWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true, // fire-and-forget untuk throughput; error dicatat di Completion
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Printf("producer: %d message(s) to %s failed: %v", len(msgs), topic, err)
			}
		},
	}, buf)
}

func NewProducerFromWriter(w Writer, buf int) *Producer {
	return &Producer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		quit:    make(chan struct{}),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go func() {
			defer close(p.closeCh)
			for {
				select {
				case <-ctx.Done():
					p.flush()
					return
				case <-p.quit:
					p.flush()
					return
				case m := <-p.inbox:
					p.write(m)
				}
			}
		}()
	})
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		log.Printf("producer: write key=%s: %v", m.Key, err)
	}
}

// flush drains whatever is still buffered, then closes the writer.
func (p *Producer) flush() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				log.Printf("producer: close writer: %v", err)
			}
			return
		}
	}
}

// Publish queues a message. It blocks while the buffer is full and fails once the
// producer is closed.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) error {
	select {
	case <-p.quit:
		return ErrProducerClosed
	default:
	}
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
		return nil
	case <-p.quit:
		return ErrProducerClosed
	case <-p.closeCh:
		return ErrProducerClosed
	}
}

// Close minta goroutine nge-flush sisa pesan lalu exit rapi.
func (p *Producer) Close() { p.quitOnce.Do(func() { close(p.quit) }) }

// Tunggu sampai goroutine selesai.
func (p *Producer) WaitClosed() { <-p.closeCh }
