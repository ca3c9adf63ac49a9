package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, SplitBrokers(""))
}

func TestNewWithoutBrokersIsNoop(t *testing.T) {
	p := New("", "topic")
	_, ok := p.(NoopPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypeWorkSubmitted}))
	assert.NoError(t, p.Close())
}

func TestKafkaPublishBoundedByContext(t *testing.T) {
	p := NewKafkaPublisher("127.0.0.1:1", "works")
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_ = p.Publish(ctx, Event{Type: TypeWorkSubmitted, WorkID: "w-1"})
	assert.Less(t, time.Since(start), 2*time.Second)
}
