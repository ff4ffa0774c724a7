package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	auctionApp "github.com/davicafu/pujalab/internal/auction/application"
	auctionEvents "github.com/davicafu/pujalab/internal/auction/infra/inbound/events"
	auctionHttp "github.com/davicafu/pujalab/internal/auction/infra/inbound/http"
	auctionRepo "github.com/davicafu/pujalab/internal/auction/infra/outbound/db/sqldb"
	bidApp "github.com/davicafu/pujalab/internal/bidding/application"
	bidEvents "github.com/davicafu/pujalab/internal/bidding/infra/inbound/events"
	bidHttp "github.com/davicafu/pujalab/internal/bidding/infra/inbound/http"
	bidRepo "github.com/davicafu/pujalab/internal/bidding/infra/outbound/db/sqldb"
	"github.com/davicafu/pujalab/internal/bidding/infra/outbound/lookup"
	notificationApp "github.com/davicafu/pujalab/internal/notification/application"
	notificationEvents "github.com/davicafu/pujalab/internal/notification/infra/inbound/events"
	notificationHttp "github.com/davicafu/pujalab/internal/notification/infra/inbound/http"
	"github.com/davicafu/pujalab/internal/notification/infra/websocket"
	searchApp "github.com/davicafu/pujalab/internal/search/application"
	searchDomain "github.com/davicafu/pujalab/internal/search/domain"
	searchEvents "github.com/davicafu/pujalab/internal/search/infra/inbound/events"
	searchHttp "github.com/davicafu/pujalab/internal/search/infra/inbound/http"
	"github.com/davicafu/pujalab/internal/search/infra/outbound/auctionsvc"
	"github.com/davicafu/pujalab/internal/search/infra/outbound/db/memory"
	"github.com/davicafu/pujalab/internal/search/infra/outbound/db/mongodb"
	sharedDB "github.com/davicafu/pujalab/internal/shared/infra/platform/db/sqldb"
)

// MountAuction arranca el catálogo: repositorio SQL con outbox, consumidor de pujas,
// cierres y Fault, y las rutas /api/auctions.
func MountAuction(ctx context.Context, rt *Runtime, router *gin.Engine) error {
	log := rt.Log.Named(auctionEvents.ConsumerName)

	store, err := rt.Store(ctx, auctionRepo.Schema)
	if err != nil {
		return err
	}
	repo := auctionRepo.NewAuctionRepo(store, sharedDB.NewOutboxRepo(store))
	service := auctionApp.NewAuctionService(repo, log)

	consumer := auctionEvents.NewAuctionConsumer(service, auctionApp.NewFaultHandler(repo, log), log)
	if err := rt.Consume(ctx, auctionEvents.ConsumerName, auctionEvents.Topics(), consumer); err != nil {
		return err
	}

	auctionHttp.RegisterAuctionRoutes(router, auctionHttp.NewAuctionHandler(service, log))
	return nil
}

// MountBidding arranca las pujas: repositorio SQL con outbox, lookup cacheado del catálogo,
// consumidor de AuctionCreated, finalizador periódico y las rutas /api/bids.
func MountBidding(ctx context.Context, rt *Runtime, router *gin.Engine) error {
	log := rt.Log.Named(bidEvents.ConsumerName)
	cfg := rt.Cfg

	store, err := rt.Store(ctx, bidRepo.Schema)
	if err != nil {
		return err
	}
	repo := bidRepo.NewBidRepo(store, sharedDB.NewOutboxRepo(store))

	client := lookup.NewClient(cfg.Lookup.AuctionServiceURL, cfg.Lookup.Timeout, log.Named("lookup"))
	cached := lookup.NewCachedLookup(client, rt.Cache(ctx, "bidding:"), cfg.Redis.CacheTTL, log.Named("lookup"))
	service := bidApp.NewBidService(repo, cached, log)

	if err := rt.Consume(ctx, bidEvents.ConsumerName, bidEvents.Topics(), bidEvents.NewBidConsumer(service, log)); err != nil {
		return err
	}

	finalizer := bidApp.NewFinalizer(repo, rt.Elector(ctx, "pujalab:finalizer:leader"), cfg.Finalizer.Interval, cfg.Finalizer.BatchSize, log.Named("finalizer"))
	rt.Go(func() { finalizer.Start(ctx) })

	bidHttp.RegisterBidRoutes(router, bidHttp.NewBidHandler(service, log))
	return nil
}

// MountSearch arranca la búsqueda: proyección en Mongo (o en memoria si no hay URI),
// consumidor de los cuatro eventos, puesta al día contra el catálogo y GET /api/search.
func MountSearch(ctx context.Context, rt *Runtime, router *gin.Engine) error {
	log := rt.Log.Named(searchEvents.ConsumerName)
	cfg := rt.Cfg

	repo, err := searchRepository(ctx, rt)
	if err != nil {
		return err
	}
	projector := searchApp.NewProjector(repo, log)

	if err := rt.Consume(ctx, searchEvents.ConsumerName, searchEvents.Topics(), searchEvents.NewSearchConsumer(projector, log)); err != nil {
		return err
	}

	source := auctionsvc.NewClient(cfg.CatchUp.AuctionServiceURL, cfg.CatchUp.RequestTimeout, cfg.CatchUp.RetryInterval, log.Named("auctionsvc"))
	catchUp := searchApp.NewCatchUp(repo, source, cfg.CatchUp.Interval, log.Named("catchup"))
	rt.Go(func() { catchUp.Start(ctx) })

	searchHttp.RegisterSearchRoutes(router, searchHttp.NewSearchHandler(projector, log))
	return nil
}

func searchRepository(ctx context.Context, rt *Runtime) (searchDomain.ItemRepository, error) {
	cfg := rt.Cfg.Mongo
	if cfg.URI == "" {
		rt.Log.Info("⚡️ Proyección de búsqueda en memoria")
		return memory.NewItemRepo(), nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	rt.onClose(func() { _ = client.Disconnect(context.Background()) })

	repo, err := mongodb.NewItemRepoMongoDB(ctx, client, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	rt.Log.Info("✅ MongoDB conectado", zap.String("database", cfg.Database))
	return repo, nil
}

// MountNotification arranca el hub de websockets y su consumidor.
func MountNotification(ctx context.Context, rt *Runtime, router *gin.Engine) error {
	log := rt.Log.Named(notificationEvents.ConsumerName)

	hub := websocket.NewHub(log.Named("hub"))
	rt.onClose(hub.Close)

	consumer := notificationEvents.NewNotificationConsumer(notificationApp.NewNotifier(hub, log), log)
	if err := rt.Consume(ctx, notificationEvents.ConsumerName, notificationEvents.Topics(), consumer); err != nil {
		return err
	}

	notificationHttp.RegisterNotificationRoutes(router, hub)
	return nil
}
