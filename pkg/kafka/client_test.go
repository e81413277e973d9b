package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"coldvault-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
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

func TestNewPublisher_NoBrokersIsNop(t *testing.T) {
	p := NewPublisher(" , ", "topic", zap.NewNop().Sugar())
	_, ok := p.(NopPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Publish(context.Background(), tasks.TransferEvent{}))
	assert.NoError(t, p.Close())
}

func TestNewPublisher_WithBrokers(t *testing.T) {
	p := NewPublisher("a:9092, b:9092", "topic", zap.NewNop().Sugar())
	kp, ok := p.(*KafkaPublisher)
	require.True(t, ok)
	w, ok := kp.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "topic", w.Topic)
	assert.Equal(t, "a:9092,b:9092", w.Addr.String())
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}

	ev := tasks.TransferEvent{
		Type:        tasks.EventTransferCompleted,
		JobID:       7,
		ArchiveID:   "arch-1",
		PartIndex:   2,
		Direction:   "upload",
		CompletedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "arch-1", string(w.msgs[0].Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "transfer.completed", decoded["type"])
	assert.EqualValues(t, 2, decoded["part_index"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w}
	assert.Error(t, p.Publish(context.Background(), tasks.ArchiveRestoredEvent{ArchiveID: "x"}))
}
