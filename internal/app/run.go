package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/config"
	"github.com/davicafu/pujalab/pkg/logger"
)

// Mount monta un contexto (auction, bidding, search, notification) sobre el runtime del proceso.
type Mount func(ctx context.Context, rt *Runtime, router *gin.Engine) error

// Run carga la configuración y ejecuta el proceso hasta SIGINT/SIGTERM.
func Run(defaultName string, mounts ...Mount) {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init("info")
		logger.Logger().Fatal("invalid configuration", zap.Error(err))
	}
	if _, ok := os.LookupEnv("SERVICE_NAME"); !ok {
		cfg.ServiceName = defaultName
	}
	RunWith(cfg, mounts...)
}

// RunWith es Run con una configuración ya preparada.
func RunWith(cfg *config.Config, mounts ...Mount) {
	logger.Init(cfg.LogLevel)
	log := logger.Logger().With(zap.String("service", cfg.ServiceName))
	defer log.Sync() // flush buffers al salir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := NewRuntime(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to start runtime", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter()
	for _, mount := range mounts {
		if err := mount(ctx, rt, router); err != nil {
			stop()
			rt.Close()
			log.Fatal("failed to start service", zap.Error(err))
		}
	}

	if err := rt.Serve(ctx, router); err != nil {
		log.Error("server stopped with error", zap.Error(err))
	}
}
