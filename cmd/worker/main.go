// cmd/worker/main.go
//
// Consumes slot events from RabbitMQ and projects them into the
// campaign_activity read-model table. The slot table stays the source
// of truth; this projection only feeds dashboards and reports.
package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/luizvincenzi/criadores-slots/internal/config"
	"github.com/luizvincenzi/criadores-slots/internal/db"
	"github.com/luizvincenzi/criadores-slots/internal/model"
)

const (
	maxRetries  = 3
	retryHeader = "x-retry-count"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config: ", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("init logger: ", err)
	}
	defer logger.Sync()

	if cfg.AMQPURL == "" {
		logger.Fatal("AMQP_URL is required for the worker")
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer conn.Close()

	amqpConn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("connect amqp", zap.Error(err))
	}
	defer amqpConn.Close()

	ch, err := amqpConn.Channel()
	if err != nil {
		logger.Fatal("open amqp channel", zap.Error(err))
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		cfg.SlotEventsQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		logger.Fatal("declare queue", zap.Error(err))
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Fatal("register consumer", zap.Error(err))
	}

	logger.Info("worker running", zap.String("queue", q.Name))

	for d := range msgs {
		var event model.SlotEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			logger.Warn("drop malformed event", zap.Error(err))
			d.Ack(false)
			continue
		}

		if err := project(conn, event); err != nil {
			logger.Error("project slot event",
				zap.String("campaign", event.BusinessName+"|"+event.Month),
				zap.Error(err))
			// Nack-requeue redelivers with the original headers, so the
			// attempt count would never move. Re-publish with the count
			// bumped instead, then ack the original.
			retries := retryCount(d.Headers)
			if retries < maxRetries {
				if err := ch.Publish("", q.Name, false, false, retryPublishing(d.Body, retries+1)); err != nil {
					logger.Error("republish slot event", zap.Error(err))
					d.Nack(false, true)
					continue
				}
			} else {
				logger.Error("give up on slot event after retries",
					zap.Int("campaign_id", event.CampaignID),
					zap.String("action", event.Action),
					zap.Int("attempts", retries))
			}
		}
		d.Ack(false)
	}
}

// retryCount reads the attempt counter from the delivery headers.
// AMQP table decoding may hand back different integer widths.
func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// retryPublishing rebuilds the message with the attempt counter set.
func retryPublishing(body []byte, retries int) amqp.Publishing {
	return amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Headers:     amqp.Table{retryHeader: int32(retries)},
	}
}

// project writes one activity row per event. Inserts are idempotent on
// (campaign_id, action, slot_index, occurred_at) so a redelivered
// message never doubles a row.
func project(conn *sqlx.DB, event model.SlotEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
INSERT INTO campaign_activity (
	campaign_id, business_name, month, action, slot_index,
	creator_id, old_creator_id, actor_email, occupied_count, occurred_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (campaign_id, action, slot_index, occurred_at) DO NOTHING`

	_, err := conn.ExecContext(ctx, query,
		event.CampaignID,
		event.BusinessName,
		event.Month,
		event.Action,
		event.SlotIndex,
		nullable(event.CreatorID),
		nullable(event.OldCreatorID),
		nullable(event.ActorEmail),
		event.OccupiedCount,
		event.OccurredAt,
	)
	return err
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
