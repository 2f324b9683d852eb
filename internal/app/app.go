package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/config"
	"github.com/kazakhbala01/qazevAPP/internal/db"
	"github.com/kazakhbala01/qazevAPP/internal/handlers"
	httpserver "github.com/kazakhbala01/qazevAPP/internal/http"
	httphandlers "github.com/kazakhbala01/qazevAPP/internal/http/handlers"
	"github.com/kazakhbala01/qazevAPP/internal/http/middleware"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp/protocol"
	"github.com/kazakhbala01/qazevAPP/internal/redisstore"
	"github.com/kazakhbala01/qazevAPP/internal/repository"
	"github.com/kazakhbala01/qazevAPP/internal/service"
	"github.com/kazakhbala01/qazevAPP/internal/telemetry"
	"github.com/kazakhbala01/qazevAPP/internal/ws"
)

// App wires the whole charging backend.
type App struct {
	server       *httpserver.Server
	manager      *ws.Manager
	reservations *service.ReservationsService
	settlement   *service.SettlementWorker
	db           *sql.DB
	redisClient  *redis.Client
	logger       *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	redisClient, err := db.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	connectorRepo := repository.NewConnectorRepository(sqlDB)
	sessionRepo := repository.NewSessionRepository(sqlDB)
	reservationRepo := repository.NewReservationRepository(sqlDB)
	balanceRepo := repository.NewBalanceRepository(sqlDB)
	settlementRepo := repository.NewSettlementRepository(sqlDB)
	historyRepo := repository.NewHistoryRepository(sqlDB)
	chargePointRepo := repository.NewChargePointRepository(sqlDB)
	catalogRepo := repository.NewCatalogRepository(sqlDB)

	activeStore := redisstore.NewStore(redisClient, cfg.CacheTTL())

	manager := ws.NewManager(cfg.PingInterval(), cfg.CallTimeout(), cfg.OfflineTimeout(), logger)

	sessionsService := service.NewSessionsService(
		connectorRepo,
		sessionRepo,
		activeStore,
		manager,
		cfg.Billing.TariffPerKWh,
		cfg.Vehicle.BatteryCapacityKWh,
		logger,
	)
	reservationsService := service.NewReservationsService(
		reservationRepo,
		sessionRepo,
		connectorRepo,
		cfg.GracePeriod(),
		cfg.SweepInterval(),
		cfg.Lookahead(),
		cfg.Reservations.MaxChargeMinutes,
		logger,
	)
	balanceService := service.NewBalanceService(balanceRepo, logger)
	settlementWorker := service.NewSettlementWorker(settlementRepo, balanceService, cfg.SettleInterval(), logger)

	hub := telemetry.NewHub(logger)
	fanout := telemetry.NewFanout(activeStore, sessionRepo, hub, logger)

	router := ocpp.NewRouter()
	router.Register(protocol.ActionBootNotification, handlers.NewBootNotificationHandler(chargePointRepo, cfg.ChargePoint.HeartbeatSeconds, logger))
	router.Register(protocol.ActionHeartbeat, handlers.NewHeartbeatHandler(chargePointRepo))
	router.Register(protocol.ActionStatusNotification, handlers.NewStatusNotificationHandler(connectorRepo, logger))
	router.Register(protocol.ActionStartTransaction, handlers.NewStartTransactionHandler(sessionsService, logger))
	router.Register(protocol.ActionStopTransaction, handlers.NewStopTransactionHandler(sessionsService, logger))
	router.Register(protocol.ActionMeterValues, handlers.NewMeterValuesHandler(fanout))

	processor := ocpp.NewProcessor(router, manager, logger)
	wsServer := ws.NewServer(manager, processor, cfg.WriteTimeout(), logger)

	manager.SetOfflineHandler(func(chargePointID string) {
		sessionsService.ForceStopStation(context.Background(), chargePointID)
	})

	routerDeps := httpserver.RouterDeps{
		SessionsHandlers:     httphandlers.NewSessionsHandlers(sessionsService, historyRepo, logger),
		StationsHandlers:     httphandlers.NewStationsHandlers(catalogRepo, connectorRepo, reservationsService, logger),
		ReservationsHandlers: httphandlers.NewReservationsHandlers(reservationsService, logger),
		BillingHandlers:      httphandlers.NewBillingHandlers(balanceService, logger),
		HealthHandler:        httphandlers.NewHealthHandler(),
		ChargePointWS:        wsServer.HandleWS,
		TelemetryWS:          hub.HandleWS,
	}
	httpRouter := httpserver.NewRouter(routerDeps, middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	server := httpserver.NewServer(cfg.HTTPAddress(), httpRouter, logger)

	return &App{
		server:       server,
		manager:      manager,
		reservations: reservationsService,
		settlement:   settlementWorker,
		db:           sqlDB,
		redisClient:  redisClient,
		logger:       logger,
	}, nil
}

// Run starts the background loops and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	go a.manager.Start(ctx)
	go a.reservations.Start(ctx)
	go a.settlement.Run(ctx)

	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
