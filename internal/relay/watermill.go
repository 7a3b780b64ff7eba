package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// DefaultTopic is the topic orders are published on.
const DefaultTopic = "storefront.orders"

// WatermillSink publishes each payload as a message on a watermill publisher,
// Kafka in production or an in-process channel in development.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
	userID    int64
}

// NewWatermillSink creates a sink publishing to topic on behalf of userID.
func NewWatermillSink(publisher message.Publisher, topic string, userID int64) *WatermillSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillSink{publisher: publisher, topic: topic, userID: userID}
}

func (s *WatermillSink) Publish(ctx context.Context, payload []byte) error {
	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set(model.MetadataUserID, strconv.FormatInt(s.userID, 10))
	msg.SetContext(ctx)

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		return fmt.Errorf("publishing order to %s: %w", s.topic, err)
	}
	return nil
}

// NewGoChannel creates an in-process pub/sub. Publishers and subscribers must
// share the same instance.
func NewGoChannel(logger *slog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NewSlogLogger(logger))
}

// NewKafkaPublisher creates a Kafka publisher for brokers.
func NewKafkaPublisher(brokers []string, logger *slog.Logger) (message.Publisher, error) {
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	return pub, nil
}

// NewKafkaSubscriber creates a Kafka subscriber in consumer group.
func NewKafkaSubscriber(brokers []string, group string, logger *slog.Logger) (message.Subscriber, error) {
	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:       brokers,
		Unmarshaler:   kafka.DefaultMarshaler{},
		ConsumerGroup: group,
	}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating kafka subscriber: %w", err)
	}
	return sub, nil
}

// OrderHandler processes one relayed order payload.
type OrderHandler func(ctx context.Context, userID int64, payload []byte) error

// Consume subscribes to topic and processes its messages until ctx is
// cancelled or the subscription closes.
func Consume(ctx context.Context, sub message.Subscriber, topic string, handle OrderHandler, logger *slog.Logger) error {
	messages, err := Subscribe(ctx, sub, topic)
	if err != nil {
		return err
	}
	return Process(ctx, messages, handle, logger)
}

// Subscribe opens the order subscription. Messages published on a
// non-persistent pub/sub before Subscribe returns are never delivered, so
// callers that publish right away subscribe before starting Process.
func Subscribe(ctx context.Context, sub message.Subscriber, topic string) (<-chan *message.Message, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return messages, nil
}

// Process feeds messages to handle until ctx is cancelled or the channel
// closes. Every message is acked: a rejected order (bad payload, no stock)
// is logged, not redelivered.
func Process(ctx context.Context, messages <-chan *message.Message, handle OrderHandler, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			logger.Info("order consumer shutting down")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			handleMessage(msg, handle, logger)
		}
	}
}

func handleMessage(msg *message.Message, handle OrderHandler, logger *slog.Logger) {
	defer msg.Ack()

	userID, err := strconv.ParseInt(msg.Metadata.Get(model.MetadataUserID), 10, 64)
	if err != nil {
		logger.Warn("dropping order without user id",
			slog.String("message_uuid", msg.UUID))
		return
	}

	if err := handle(msg.Context(), userID, msg.Payload); err != nil {
		logger.Error("failed to handle order",
			slog.String("message_uuid", msg.UUID),
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()))
	}
}
