package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/config"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/internal/shared/infra/archive/clickhouse"
	"github.com/davicafu/pujalab/internal/shared/infra/dispatcher"
	infraEvents "github.com/davicafu/pujalab/internal/shared/infra/events"
	sharedBus "github.com/davicafu/pujalab/internal/shared/infra/platform/bus"
	"github.com/davicafu/pujalab/internal/shared/infra/platform/cache"
	sharedDB "github.com/davicafu/pujalab/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/pujalab/internal/shared/infra/platform/leader"
	"github.com/davicafu/pujalab/internal/shared/infra/relayer"
)

const shutdownTimeout = 10 * time.Second

// Transport es un bus capaz de publicar y de abrir bucles de consumo.
type Transport interface {
	sharedBus.EventBus
	sharedBus.Subscriber
	Wait()
}

// Runtime agrupa la infraestructura compartida de un proceso: bus, redis,
// tareas en segundo plano y los cierres pendientes para el apagado.
type Runtime struct {
	Cfg *config.Config
	Log *zap.Logger
	Bus Transport

	redis   *redis.Client
	store   *sharedDB.Store
	wg      sync.WaitGroup
	closers []func()
}

// NewRuntime prepara el transporte elegido en la configuración.
func NewRuntime(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Runtime, error) {
	rt := &Runtime{Cfg: cfg, Log: log}

	switch cfg.Transport.Kind {
	case "kafka":
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.Transport.KafkaBrokers))
		writer := infraEvents.NewKafkaWriter(cfg.Transport.KafkaBrokers)
		rt.onClose(func() { _ = writer.Close() })
		rt.Bus = kafkaTransport{
			KafkaPublisher:  infraEvents.NewKafkaPublisher(writer, log.Named("kafka")),
			KafkaSubscriber: infraEvents.NewKafkaSubscriber(cfg.Transport.KafkaBrokers, log.Named("kafka")),
		}
	case "redis-streams":
		log.Info("🚀 Usando Redis Streams como bus de eventos", zap.String("addr", cfg.Transport.RedisAddr))
		client, err := rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{cfg.Transport.RedisAddr}})
		if err != nil {
			return nil, fmt.Errorf("connect redis streams: %w", err)
		}
		rt.onClose(client.Close)
		rt.Bus = infraEvents.NewRedisStreamBus(client, cfg.InstanceID, cfg.Transport.BlockTimeout, log.Named("redis-streams"))
	default:
		log.Info("⚡️ Usando bus de eventos en memoria")
		rt.Bus = infraEvents.NewInMemoryEventBus(256, log.Named("bus"))
	}
	return rt, nil
}

type kafkaTransport struct {
	*infraEvents.KafkaPublisher
	*infraEvents.KafkaSubscriber
}

func (rt *Runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// Go lanza una tarea en segundo plano que el apagado espera.
func (rt *Runtime) Go(fn func()) {
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		fn()
	}()
}

// Consume suscribe el consumidor a cada topic, envuelto en la política de entrega
// (reintentos, dead-letter y Fault al dueño).
func (rt *Runtime) Consume(ctx context.Context, consumer string, topics []string, handler sharedBus.MessageHandler) error {
	policy := dispatcher.Policy{MaxAttempts: rt.Cfg.Delivery.MaxAttempts, Interval: rt.Cfg.Delivery.Interval}
	for _, topic := range topics {
		d := dispatcher.New(consumer, topic, handler, rt.Bus, policy, rt.Log.Named(consumer))
		if err := rt.Bus.Subscribe(ctx, topic, consumer, d); err != nil {
			return fmt.Errorf("subscribe %s to %s: %w", consumer, topic, err)
		}
		rt.Log.Info("🎧 Consumer subscribed", zap.String("consumer", consumer), zap.String("topic", topic))
	}
	return nil
}

// Store abre (una sola vez por proceso) la base SQL y aplica los esquemas indicados.
func (rt *Runtime) Store(ctx context.Context, schemas ...func(sharedDB.Dialect) []string) (*sharedDB.Store, error) {
	if rt.store == nil {
		dialect, err := sharedDB.ParseDialect(rt.Cfg.Store.Driver)
		if err != nil {
			return nil, err
		}
		db, err := sharedDB.Open(ctx, dialect, rt.Cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		rt.onClose(func() { _ = db.Close() })
		rt.store = sharedDB.NewStore(db, dialect)
		rt.startOutbox(ctx, rt.store)
	}
	for _, schema := range schemas {
		if err := rt.store.Migrate(ctx, schema(rt.store.Dialect)); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return rt.store, nil
}

// startOutbox arranca el drenado de outbox y el purgado programado sobre el store.
func (rt *Runtime) startOutbox(ctx context.Context, store *sharedDB.Store) {
	cfg := rt.Cfg.Outbox
	outbox := sharedDB.NewOutboxRepo(store)

	worker := relayer.NewOutboxWorker(outbox, rt.Bus, sharedEvents.NewEventRegistry(), cfg.DrainInterval, cfg.BatchSize, rt.Log.Named("relayer"))
	rt.Go(func() { worker.Start(ctx) })

	var archiver relayer.Archiver
	if rt.Cfg.ClickHouse.Addr != "" {
		archive, err := clickhouse.NewOutboxArchive(rt.Cfg.ClickHouse.Addr, rt.Cfg.ClickHouse.Database, rt.Cfg.ServiceName)
		if err == nil {
			err = archive.InitSchema(ctx)
		}
		if err != nil {
			rt.Log.Warn("⚠️ ClickHouse no disponible, outbox se purga sin archivar", zap.Error(err))
		} else {
			rt.onClose(func() { _ = archive.Close() })
			archiver = archive
		}
	}

	purger := relayer.NewPurger(outbox, archiver, cfg.Retention, cfg.MaxAge, cfg.BatchSize, rt.Log.Named("purger"))
	cr, err := purger.Schedule(ctx, cfg.PurgeSchedule)
	if err != nil {
		rt.Log.Error("invalid purge schedule", zap.String("schedule", cfg.PurgeSchedule), zap.Error(err))
		return
	}
	rt.onClose(func() { <-cr.Stop().Done() })
}

// Redis devuelve el cliente go-redis, o nil si no responde.
func (rt *Runtime) Redis(ctx context.Context) *redis.Client {
	if rt.redis != nil {
		return rt.redis
	}
	rdb := redis.NewClient(&redis.Options{Addr: rt.Cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rt.Log.Warn("⚠️ Redis no disponible", zap.String("addr", rt.Cfg.Redis.Addr), zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	rt.Log.Info("✅ Redis conectado", zap.String("addr", rt.Cfg.Redis.Addr))
	rt.onClose(func() { _ = rdb.Close() })
	rt.redis = rdb
	return rdb
}

// Cache usa Redis si está disponible y si no cae a la caché en memoria.
func (rt *Runtime) Cache(ctx context.Context, prefix string) cache.Cache {
	if rdb := rt.Redis(ctx); rdb != nil {
		return cache.NewRedisCache(rdb, prefix, rt.Cfg.Redis.CacheTTL)
	}
	mem := cache.NewInMemoryCache(rt.Cfg.Redis.CacheTTL, 3*rt.Cfg.Redis.CacheTTL)
	rt.onClose(mem.Stop)
	return mem
}

// Elector devuelve el lease de Redis si se pidió y hay Redis; si no, esta instancia siempre lidera.
func (rt *Runtime) Elector(ctx context.Context, key string) leader.Elector {
	if !rt.Cfg.Finalizer.UseLeader {
		return leader.AlwaysLeader{}
	}
	rdb := rt.Redis(ctx)
	if rdb == nil {
		rt.Log.Warn("⚠️ Sin Redis no hay elección de líder; esta instancia ejecuta el finalizador")
		return leader.AlwaysLeader{}
	}
	return leader.NewRedisLeaderElection(rdb, key, rt.Cfg.InstanceID, rt.Cfg.Finalizer.LeaderTTL)
}

// NewRouter crea el engine de gin con /health.
func NewRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// Serve atiende HTTP hasta que se cancela ctx y después apaga el proceso en orden:
// servidor, tareas en segundo plano, consumidores y recursos.
func (rt *Runtime) Serve(ctx context.Context, router http.Handler) error {
	srv := &http.Server{Addr: ":" + rt.Cfg.HTTPPort, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		rt.Log.Info("🚀 Server running", zap.String("service", rt.Cfg.ServiceName), zap.String("url", "http://localhost:"+rt.Cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	rt.Log.Info("🛑 Shutting down", zap.String("service", rt.Cfg.ServiceName))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.Log.Warn("HTTP shutdown", zap.Error(err))
	}
	rt.Close()
	return serveErr
}

// Close espera a las tareas y consumidores (ctx ya cancelado) y libera los recursos en orden inverso.
func (rt *Runtime) Close() {
	rt.wg.Wait()
	rt.Bus.Wait()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
