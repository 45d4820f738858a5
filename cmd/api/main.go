package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/lp-engine/internal/application/allocation"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
	infracache "github.com/jhoicas/lp-engine/internal/infrastructure/cache"
	infrapdf "github.com/jhoicas/lp-engine/internal/infrastructure/pdf"
	"github.com/jhoicas/lp-engine/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/lp-engine/internal/interfaces/http"
	"github.com/jhoicas/lp-engine/internal/jobs"
	"github.com/jhoicas/lp-engine/pkg/config"
	"github.com/jhoicas/lp-engine/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	lpRepo := postgres.NewLicensePlateRepository(pool)
	reservationRepo := postgres.NewReservationRepository(pool)
	settingsRepo := postgres.NewWarehouseSettingsRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Caché de disponibilidad: opcional. Sin REDIS_ADDR o con Redis caído se trabaja sin caché.
	var cache allocation.AvailabilityCache = allocation.NoopCache{}
	if cfg.Redis.Addr != "" {
		client, err := infracache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis no disponible, caché deshabilitado")
		} else {
			defer client.Close()
			cache = infracache.NewRedisAvailabilityCache(client, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
			log.Info().Str("addr", cfg.Redis.Addr).Int("ttl_seconds", cfg.Cache.TTLSeconds).Msg("caché Redis habilitado")
		}
	}

	ledger := allocation.NewLedger(txRunner, lpRepo, reservationRepo, cache, infrapdf.NewMarotoPickListGenerator(), log)
	locator := allocation.NewLocator(lpRepo, settingsRepo, entity.WarehouseSettings{
		EnableFIFO:      cfg.Picking.EnableFIFO,
		EnableFEFO:      cfg.Picking.EnableFEFO,
		FEFOWarningDays: &cfg.Picking.FEFOWarningDays,
	})
	allocator := allocation.NewAllocator(locator, ledger, log)

	scheduler, err := jobs.NewScheduler(
		jobs.NewIntegrityAuditor(lpRepo, log),
		time.Duration(cfg.Audit.IntervalMinutes)*time.Minute,
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: httpRouter.ErrorHandler,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "LP Engine API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		Locator:   locator,
		Ledger:    ledger,
		Allocator: allocator,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := scheduler.Stop(); err != nil {
		log.Error().Err(err).Msg("apagado del scheduler")
	}

	log.Info().Msg("aplicación detenida")
}
