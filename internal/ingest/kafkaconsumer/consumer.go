package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
	obs "github.com/Janus-Aurelius/driver-proximity/internal/core/observability"
	mylog "github.com/Janus-Aurelius/driver-proximity/internal/logger"
)

// LocationApplier is the slice of the gateway the consumer needs.
type LocationApplier interface {
	ReportLocation(ctx context.Context, id string, lon, lat float64) error
	Deregister(ctx context.Context, id string) error
}

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	gateway LocationApplier
	dedupe  *seqDedupe
	zlog    *zerolog.Logger
}

func New(cfg Config, logger *slog.Logger, gw LocationApplier) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:     cfg,
		logger:  logger,
		gateway: gw,
		dedupe:  newSeqDedupe(cfg.DedupeSize),
	}
}

// consumes driver location events from kafka and applies them to the store
func (c *Consumer) Start(ctx context.Context) error {
	if c.gateway == nil {
		return errors.New("kafkaconsumer: missing gateway")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	zl := mylog.Build(mylog.Config{
		Level:     "info",
		Component: "kafka_consumer",
	}, nil)
	c.zlog = &zl

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka location consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka location consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// process a single location event message. Malformed and stale events
// are dropped so a bad message never wedges the partition; only store
// failures propagate and trigger a redelivery.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncIngestError("decode")
		mylog.FromContext(ctx, c.zlog).Error().
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncIngestError("validate")
		mylog.FromContext(ctx, c.zlog).Error().
			Str("kind", "validate").
			Str("op", ev.Op).
			Str("driver_id", ev.DriverID).
			Err(err).
			Msg("kafka error")
		return nil
	}

	if c.dedupe.isStale(ev.DriverID, ev.Seq) {
		obs.IncIngestError("stale_seq")
		c.logger.Debug("skipping stale event",
			"driver_id", ev.DriverID, "seq", ev.Seq, "op", ev.Op)
		return nil
	}

	var err error
	switch ev.Op {
	case OpUpdate:
		err = c.gateway.ReportLocation(ctx, ev.DriverID, ev.Longitude, ev.Latitude)
	case OpDeregister:
		err = c.gateway.Deregister(ctx, ev.DriverID)
	}
	if errors.Is(err, model.ErrInvalidCoordinate) {
		// Bad coordinates are a producer bug, not a store fault. Drop
		// the event instead of redelivering it forever.
		obs.IncIngestError("coordinate")
		mylog.FromContext(ctx, c.zlog).Error().
			Str("kind", "coordinate").
			Str("driver_id", ev.DriverID).
			Err(err).
			Msg("kafka error")
		return nil
	}
	if err != nil {
		obs.IncIngestError("apply")
		mylog.FromContext(ctx, c.zlog).Error().
			Str("kind", "apply").
			Str("op", ev.Op).
			Str("driver_id", ev.DriverID).
			Err(err).
			Msg("kafka error")
		return fmt.Errorf("apply %s for %q: %w", ev.Op, ev.DriverID, err)
	}

	c.dedupe.markApplied(ev.DriverID, ev.Seq)
	c.logger.Debug("applied location event",
		"op", ev.Op, "driver_id", ev.DriverID, "seq", ev.Seq)
	return nil
}
