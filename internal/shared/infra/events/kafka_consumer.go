package events

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/pujalab/internal/shared/infra/platform/bus"
)

const redeliveryPause = time.Second

// ConsumerAdapter es el "oído" que escucha en Kafka.
// El offset se confirma solo después de que el handler termina con el mensaje.
type ConsumerAdapter struct {
	reader  *kafka.Reader
	handler sharedBus.MessageHandler
	log     *zap.Logger
}

func NewConsumerAdapter(reader *kafka.Reader, handler sharedBus.MessageHandler, log *zap.Logger) *ConsumerAdapter {
	return &ConsumerAdapter{
		reader:  reader,
		handler: handler,
		log:     log,
	}
}

// Start inicia el bucle de consumo; wg.Done se llama al salir.
func (c *ConsumerAdapter) Start(ctx context.Context, wg *sync.WaitGroup) {
	topic := c.reader.Config().Topic
	c.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("topic", topic),
		zap.String("group", c.reader.Config().GroupID),
		zap.Strings("brokers", c.reader.Config().Brokers),
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.reader.Close()
		for {
			// FetchMessage es bloqueante y no confirma el offset.
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				// Si el contexto se cancela, el error es normal y salimos limpiamente.
				if ctx.Err() != nil {
					c.log.Info("Consumidor de Kafka detenido.", zap.String("topic", topic))
					return
				}
				c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
				continue
			}

			if !c.handle(ctx, msg) {
				// Apagado sin confirmar: tras el reinicio se vuelve a entregar.
				return
			}

			if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
				c.log.Warn("No se pudo confirmar el offset", zap.Int64("offset", msg.Offset), zap.Error(err))
			}
		}
	}()
}

// handle insiste con el mismo mensaje hasta procesarlo; así nunca se confirma
// un offset posterior a uno pendiente. Devuelve false si se canceló ctx antes.
func (c *ConsumerAdapter) handle(ctx context.Context, msg kafka.Message) bool {
	for {
		err := c.handler.HandleMessage(ctx, string(msg.Key), msg.Value)
		if err == nil {
			return true
		}
		c.log.Error("Mensaje no procesado", zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(redeliveryPause):
		}
	}
}

// KafkaSubscriber crea un ConsumerAdapter por suscripción.
type KafkaSubscriber struct {
	brokers []string
	wg      sync.WaitGroup
	log     *zap.Logger
}

func NewKafkaSubscriber(brokers []string, log *zap.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{brokers: brokers, log: log}
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, topic, group string, handler sharedBus.MessageHandler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	NewConsumerAdapter(reader, handler, s.log).Start(ctx, &s.wg)
	return nil
}

// Wait espera a que terminen todos los bucles tras cancelar el contexto.
func (s *KafkaSubscriber) Wait() {
	s.wg.Wait()
}

var _ sharedBus.Subscriber = (*KafkaSubscriber)(nil)
