package mailer

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/warapp/apiserver/internal/mq"
)

// Consumer drains the email channel and delivers each message through the
// configured Mailer.
type Consumer struct {
	queue   *mq.MQ
	channel string
	mailer  Mailer
	log     zerolog.Logger
}

func NewConsumer(queue *mq.MQ, channel string, mailer Mailer, log zerolog.Logger) *Consumer {
	return &Consumer{
		queue:   queue,
		channel: channel,
		mailer:  mailer,
		log:     log,
	}
}

// Run subscribes and blocks until ctx is done. A failed delivery is
// reported to the broker so it can redeliver.
func (c *Consumer) Run(ctx context.Context) error {
	return c.queue.Subscribe(ctx, c.channel, c.handle)
}

func (c *Consumer) handle(ctx context.Context, msg mq.Message) error {
	var message Message
	if err := json.Unmarshal(msg.Data, &message); err != nil {
		// Poison payload, do not requeue.
		c.log.Error().Err(err).Str("message_id", msg.ID).Msg("discarding undecodable email message")
		return nil
	}

	if err := c.mailer.Send(ctx, message); err != nil {
		c.log.Error().Err(err).Str("to", message.To).Msg("email delivery failed")
		return err
	}

	c.log.Info().Str("to", message.To).Str("subject", message.Subject).Msg("email delivered")
	return nil
}
