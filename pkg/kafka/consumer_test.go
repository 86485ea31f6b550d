package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunbrew/cafe-order-api/pkg/logger"
)

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string           { return "test-member" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {
}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.marked = append(s.marked, msg.Offset)
}
func (s *fakeSession) Context() context.Context { return s.ctx }

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "cafe.orders" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

type fakeMessageHandler struct {
	failAtOffset int64
	handled      []int64
}

func (h *fakeMessageHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	h.handled = append(h.handled, msg.Offset)
	if msg.Offset == h.failAtOffset {
		return errors.New("handler failure")
	}
	return nil
}

func newClaimWithOffsets(offsets ...int64) *fakeClaim {
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(offsets))}
	for _, offset := range offsets {
		claim.messages <- &sarama.ConsumerMessage{Topic: "cafe.orders", Offset: offset}
	}
	close(claim.messages)
	return claim
}

func newTestConsumer(handler MessageHandler) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Consumer{
		handlers: map[string]MessageHandler{"cafe.orders": handler},
		logger:   logger.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	return c
}

func TestConsumeClaim_MarksHandledMessages(t *testing.T) {
	t.Parallel()

	handler := &fakeMessageHandler{failAtOffset: -1}
	c := newTestConsumer(handler)
	defer c.cancel()

	session := &fakeSession{ctx: context.Background()}

	err := c.ConsumeClaim(session, newClaimWithOffsets(10, 11, 12))
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 11, 12}, handler.handled)
	assert.Equal(t, []int64{10, 11, 12}, session.marked)
}

func TestConsumeClaim_StopsAtFailureWithoutMarkingPastIt(t *testing.T) {
	t.Parallel()

	handler := &fakeMessageHandler{failAtOffset: 11}
	c := newTestConsumer(handler)
	defer c.cancel()

	session := &fakeSession{ctx: context.Background()}

	err := c.ConsumeClaim(session, newClaimWithOffsets(10, 11, 12))
	require.Error(t, err)

	// Nothing at or past the failed offset is marked, so the committed
	// offset stays behind it and the message is redelivered after rejoin
	assert.Equal(t, []int64{10}, session.marked)
	assert.Equal(t, []int64{10, 11}, handler.handled)
}

func TestConsumeClaim_UnknownTopicIsMarkedAndSkipped(t *testing.T) {
	t.Parallel()

	handler := &fakeMessageHandler{failAtOffset: -1}
	c := newTestConsumer(handler)
	defer c.cancel()

	session := &fakeSession{ctx: context.Background()}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "unrelated", Offset: 5}
	close(claim.messages)

	err := c.ConsumeClaim(session, claim)
	require.NoError(t, err)

	assert.Empty(t, handler.handled)
	assert.Equal(t, []int64{5}, session.marked)
}
