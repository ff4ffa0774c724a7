package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	sharedDomainEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/pujalab/internal/shared/infra/platform/bus"
)

// Campos de cada entrada del stream.
const (
	streamFieldType    = "event_type"
	streamFieldKey     = "aggregate_id"
	streamFieldPayload = "payload"
)

// RedisStreamBus publica con XADD y consume con grupos XREADGROUP/XACK.
// Cada topic es un stream con el mismo nombre.
type RedisStreamBus struct {
	client       rueidis.Client
	consumerName string
	blockTimeout time.Duration
	wg           sync.WaitGroup
	log          *zap.Logger
}

var (
	_ sharedBus.EventBus   = (*RedisStreamBus)(nil)
	_ sharedBus.Subscriber = (*RedisStreamBus)(nil)
)

func NewRedisStreamBus(client rueidis.Client, consumerName string, blockTimeout time.Duration, log *zap.Logger) *RedisStreamBus {
	return &RedisStreamBus{
		client:       client,
		consumerName: consumerName,
		blockTimeout: blockTimeout,
		log:          log,
	}
}

func (b *RedisStreamBus) Publish(ctx context.Context, topic string, event sharedDomainEvents.IntegrationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	cmd := b.client.B().Xadd().Key(topic).Id("*").
		FieldValue().
		FieldValue(streamFieldType, event.Type).
		FieldValue(streamFieldKey, event.PartitionKey()).
		FieldValue(streamFieldPayload, string(payload)).
		Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		b.log.Error("Error publishing to Redis stream", zap.String("stream", topic), zap.Error(err))
		return err
	}
	return nil
}

func (b *RedisStreamBus) Subscribe(ctx context.Context, topic, group string, handler sharedBus.MessageHandler) error {
	create := b.client.B().XgroupCreate().Key(topic).Group(group).Id("0").Mkstream().Build()
	if err := b.client.Do(ctx, create).Error(); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}

	b.log.Info("🎧 Iniciando consumidor de Redis Streams",
		zap.String("stream", topic),
		zap.String("group", group),
		zap.String("consumer", b.consumerName),
	)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		// Primero lo pendiente de este consumidor (entregado y no confirmado antes de un reinicio).
		cursor := "0"
		for ctx.Err() == nil {
			entries, err := b.read(ctx, topic, group, cursor)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				b.log.Error("Error leyendo del stream", zap.String("stream", topic), zap.Error(err))
				b.pause(ctx)
				continue
			}
			if cursor == "0" && len(entries) == 0 {
				cursor = ">"
				continue
			}
			for _, entry := range entries {
				if !b.handle(ctx, handler, entry) {
					return
				}
				ack := b.client.B().Xack().Key(topic).Group(group).Id(entry.ID).Build()
				if err := b.client.Do(context.WithoutCancel(ctx), ack).Error(); err != nil {
					b.log.Warn("No se pudo confirmar (XACK) el mensaje", zap.String("id", entry.ID), zap.Error(err))
				}
			}
		}
		b.log.Info("Consumidor de Redis Streams detenido", zap.String("stream", topic))
	}()
	return nil
}

func (b *RedisStreamBus) read(ctx context.Context, topic, group, cursor string) ([]rueidis.XRangeEntry, error) {
	cmd := b.client.B().Xreadgroup().Group(group, b.consumerName).
		Count(10).
		Block(b.blockTimeout.Milliseconds()).
		Streams().
		Key(topic).
		Id(cursor).
		Build()

	result := b.client.Do(ctx, cmd)
	if err := result.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil // timeout del BLOCK
		}
		return nil, err
	}
	streams, err := result.AsXRead()
	if err != nil {
		return nil, err
	}
	return streams[topic], nil
}

func (b *RedisStreamBus) handle(ctx context.Context, handler sharedBus.MessageHandler, entry rueidis.XRangeEntry) bool {
	for {
		err := handler.HandleMessage(ctx, entry.FieldValues[streamFieldKey], []byte(entry.FieldValues[streamFieldPayload]))
		if err == nil {
			return true
		}
		b.log.Error("Mensaje no procesado", zap.String("id", entry.ID), zap.Error(err))
		if !b.pause(ctx) {
			return false
		}
	}
}

func (b *RedisStreamBus) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(redeliveryPause):
		return true
	}
}

// Wait espera a que terminen los consumidores tras cancelar el contexto.
func (b *RedisStreamBus) Wait() {
	b.wg.Wait()
}
