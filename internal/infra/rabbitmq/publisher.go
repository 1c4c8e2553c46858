package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/roadscope/scene-processing-service/internal/domain/entity"
)

type Publisher struct {
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

// CallbackReporter resolves workflow task tokens by publishing a SceneCallbackMessage with
// the token as correlation id.
type CallbackReporter struct {
	pub        *Publisher
	routingKey string
}

func NewCallbackReporter(pub *Publisher) *CallbackReporter {
	return &CallbackReporter{pub: pub, routingKey: CallbackRoutingKey}
}

func (r *CallbackReporter) ReportSuccess(ctx context.Context, token string, payload entity.SceneSuccessPayload) error {
	return r.publish(ctx, entity.SceneCallbackMessage{
		TaskToken: token,
		Status:    entity.CallbackSuccess,
		Output:    &payload,
	})
}

func (r *CallbackReporter) ReportFailure(ctx context.Context, token string, code entity.ErrorCode, cause string) error {
	return r.publish(ctx, entity.SceneCallbackMessage{
		TaskToken: token,
		Status:    entity.CallbackFailure,
		ErrorCode: code,
		Cause:     cause,
	})
}

func (r *CallbackReporter) publish(ctx context.Context, msg entity.SceneCallbackMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}
	err = r.pub.channel.PublishWithContext(ctx,
		r.pub.exchange,
		r.routingKey,
		false, false,
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: msg.TaskToken,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish callback: %w", err)
	}
	return nil
}

type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	return dp.pub.channel.PublishWithContext(ctx,
		"",
		dp.queue,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers: amqp.Table{
				"x-dlq-reason": reason,
			},
		},
	)
}
