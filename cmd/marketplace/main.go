package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/app"
	"github.com/davicafu/pujalab/internal/config"
	"github.com/davicafu/pujalab/pkg/logger"
)

// marketplace levanta los cuatro contextos en un solo proceso. Es el modo local:
// con el bus en memoria los eventos solo circulan dentro del proceso.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init("info")
		logger.Logger().Fatal("invalid configuration", zap.Error(err))
	}
	if _, ok := os.LookupEnv("SERVICE_NAME"); !ok {
		cfg.ServiceName = "marketplace"
	}

	// Las consultas al catálogo van contra este mismo proceso.
	self := "http://localhost:" + cfg.HTTPPort
	if _, ok := os.LookupEnv("LOOKUP_AUCTION_SERVICE_URL"); !ok {
		cfg.Lookup.AuctionServiceURL = self
	}
	if _, ok := os.LookupEnv("CATCHUP_AUCTION_SERVICE_URL"); !ok {
		cfg.CatchUp.AuctionServiceURL = self
	}

	app.RunWith(cfg, app.MountAuction, app.MountBidding, app.MountSearch, app.MountNotification)
}
