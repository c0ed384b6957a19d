package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cancelBookingHandler "github.com/m04kA/SMC-SettlementService/internal/api/handlers/cancel_booking"
	completeBookingHandler "github.com/m04kA/SMC-SettlementService/internal/api/handlers/complete_booking"
	createBookingHandler "github.com/m04kA/SMC-SettlementService/internal/api/handlers/create_booking"
	createPaymentHandler "github.com/m04kA/SMC-SettlementService/internal/api/handlers/create_payment"
	getBookingHandler "github.com/m04kA/SMC-SettlementService/internal/api/handlers/get_booking"
	listBusinessBookingsHandler "github.com/m04kA/SMC-SettlementService/internal/api/handlers/list_business_bookings"
	listCustomerBookingsHandler "github.com/m04kA/SMC-SettlementService/internal/api/handlers/list_customer_bookings"
	paymentCallbackHandler "github.com/m04kA/SMC-SettlementService/internal/api/handlers/payment_callback"
	"github.com/m04kA/SMC-SettlementService/internal/api/middleware"
	"github.com/m04kA/SMC-SettlementService/internal/config"
	bookingRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/booking"
	commissionRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/commission"
	outboxRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/outbox"
	paymentRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/payment"
	catalogServiceClient "github.com/m04kA/SMC-SettlementService/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-SettlementService/internal/integrations/stripecharge"
	bookingsService "github.com/m04kA/SMC-SettlementService/internal/service/bookings"
	"github.com/m04kA/SMC-SettlementService/internal/service/commission"
	"github.com/m04kA/SMC-SettlementService/internal/service/gateway"
	paymentsService "github.com/m04kA/SMC-SettlementService/internal/service/payments"
	"github.com/m04kA/SMC-SettlementService/internal/usecase/settlement"
	outboxWorker "github.com/m04kA/SMC-SettlementService/internal/worker/outbox"
	reconcilerWorker "github.com/m04kA/SMC-SettlementService/internal/worker/reconciler"
	"github.com/m04kA/SMC-SettlementService/pkg/dbmetrics"
	"github.com/m04kA/SMC-SettlementService/pkg/logger"
	"github.com/m04kA/SMC-SettlementService/pkg/messaging"
	"github.com/m04kA/SMC-SettlementService/pkg/metrics"
	"github.com/m04kA/SMC-SettlementService/pkg/signature"
	"github.com/m04kA/SMC-SettlementService/pkg/txmanager"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load("config.toml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	log, err := logger.New(cfg.Logs.File, cfg.Logs.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("Starting SMC-SettlementService...")
	log.Info("Configuration loaded from config.toml")

	// Инициализируем метрики (если включены)
	var metricsCollector *metrics.Metrics
	stopMetricsCh := make(chan struct{})

	if cfg.Metrics.Enabled {
		metricsCollector = metrics.New(cfg.Metrics.ServiceName)
		log.Info("Metrics enabled at %s", cfg.Metrics.Path)
	}

	// Подключаемся к базе данных
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Настраиваем connection pool
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database: %v", err)
	}
	log.Info("Successfully connected to database (host=%s, port=%d, db=%s)",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

	// Без метрик обёртка просто проксирует запросы
	wrappedDB := dbmetrics.WrapWithDefault(db, metricsCollector, cfg.Metrics.ServiceName, stopMetricsCh)
	txMgr := txmanager.NewTransactionManager(wrappedDB)

	// Репозитории
	bookingRepository := bookingRepo.NewRepository(wrappedDB)
	paymentRepository := paymentRepo.NewRepository(wrappedDB)
	commissionRepository := commissionRepo.NewRepository(wrappedDB)
	outboxRepository := outboxRepo.NewRepository(wrappedDB)

	// Комиссия платформы
	rate, err := cfg.Commission.RateDecimal()
	if err != nil {
		log.Fatal("Invalid commission rate: %v", err)
	}
	calculator, err := commission.NewCalculator(rate)
	if err != nil {
		log.Fatal("Failed to create commission calculator: %v", err)
	}

	// Платёжные шлюзы
	registry, err := buildGateways(cfg, log)
	if err != nil {
		log.Fatal("Failed to configure payment gateways: %v", err)
	}

	// Сервисы
	bookingSvc := bookingsService.NewService(
		bookingRepository,
		paymentRepository,
		outboxRepository,
		calculator,
		txMgr,
		log,
	)
	ledger := paymentsService.NewService(
		paymentRepository,
		commissionRepository,
		bookingRepository,
		outboxRepository,
		registry,
		calculator,
		txMgr,
		metricsCollector,
		log,
	)

	// Каталог услуг (опционально)
	var catalog settlement.CatalogClient
	if cfg.CatalogService.Enabled {
		catalog = catalogServiceClient.NewClient(
			cfg.CatalogService.URL,
			time.Duration(cfg.CatalogService.Timeout)*time.Second,
			log,
		)
		log.Info("Catalog client initialized (CatalogService=%s timeout=%ds)",
			cfg.CatalogService.URL, cfg.CatalogService.Timeout)
	}

	settlementUseCase := settlement.NewUseCase(
		bookingSvc,
		ledger,
		bookingRepository,
		registry,
		catalog,
		outboxRepository,
		txMgr,
		metricsCollector,
		log,
	).WithStalePaymentAge(cfg.Reconciler.StaleAfter())

	// Публикация событий
	publisher, err := messaging.NewPublisher(messaging.Options{
		Transport:      cfg.Messaging.Transport,
		RabbitURL:      cfg.Messaging.RabbitURL,
		RabbitExchange: cfg.Messaging.RabbitExchange,
		RedisAddr:      cfg.Messaging.RedisAddr,
		RedisPassword:  cfg.Messaging.RedisPassword,
		RedisDB:        cfg.Messaging.RedisDB,
		RedisChannel:   cfg.Messaging.RedisChannel,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize event publisher: %v", err)
	}
	defer publisher.Close()
	log.Info("Event publisher initialized (transport=%s)", cfg.Messaging.Transport)

	// Фоновые воркеры
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	if cfg.Outbox.Enabled {
		relay := outboxWorker.NewRelay(outboxRepository, publisher, txMgr, metricsCollector, log, outboxWorker.Config{
			Interval:    cfg.Outbox.Interval(),
			BatchSize:   uint64(cfg.Outbox.BatchSize),
			MaxAttempts: cfg.Outbox.MaxAttempts,
		})
		workers.Add(1)
		go func() {
			defer workers.Done()
			relay.Run(workersCtx)
		}()
	}

	if cfg.Reconciler.Enabled {
		reconciler := reconcilerWorker.NewWorker(
			settlementUseCase,
			time.Duration(cfg.Reconciler.Interval)*time.Second,
			uint64(cfg.Reconciler.BatchSize),
			log,
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			reconciler.Run(workersCtx)
		}()
	}

	// Инициализируем handlers
	createBooking := createBookingHandler.NewHandler(settlementUseCase, log)
	getBooking := getBookingHandler.NewHandler(settlementUseCase, log)
	cancelBooking := cancelBookingHandler.NewHandler(settlementUseCase, log)
	completeBooking := completeBookingHandler.NewHandler(settlementUseCase, log)
	createPayment := createPaymentHandler.NewHandler(settlementUseCase, log)
	paymentCallback := paymentCallbackHandler.NewHandler(settlementUseCase, log)
	listCustomerBookings := listCustomerBookingsHandler.NewHandler(bookingSvc, log)
	listBusinessBookings := listBusinessBookingsHandler.NewHandler(bookingSvc, log)

	// Настраиваем роутер
	r := mux.NewRouter()

	// Добавляем metrics middleware (если метрики включены)
	if cfg.Metrics.Enabled {
		r.Use(middleware.MetricsMiddleware(metricsCollector))
		log.Info("HTTP metrics middleware enabled")

		// Metrics endpoint (публичный, без аутентификации)
		r.Handle(cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
		log.Info("Prometheus metrics endpoint exposed at %s", cfg.Metrics.Path)
	}

	// API prefix
	api := r.PathPrefix("/api/v1").Subrouter()

	// ============================================================
	// PUBLIC ROUTES (вызываются платёжным шлюзом)
	// ============================================================

	callback := api.PathPrefix("/payments/callback").Subrouter()
	if cfg.RateLimit.Enabled {
		callback.Use(middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst), log))
		log.Info("Callback rate limit enabled (rps=%.1f, burst=%d)", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	callback.HandleFunc("", paymentCallback.Handle).Methods(http.MethodPost)

	// ============================================================
	// PROTECTED ROUTES (требуют X-User-ID header)
	// ============================================================

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth)

	// --- Бронирования ---
	protected.HandleFunc("/bookings", createBooking.Handle).Methods(http.MethodPost)
	protected.HandleFunc("/bookings/{bookingId}", getBooking.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/bookings/{bookingId}/cancel", cancelBooking.Handle).Methods(http.MethodPatch)
	protected.HandleFunc("/bookings/{bookingId}/complete", completeBooking.Handle).Methods(http.MethodPatch)

	// История бронирований клиента и список бронирований бизнеса
	protected.HandleFunc("/customers/{customerId}/bookings", listCustomerBookings.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/businesses/{businessId}/bookings", listBusinessBookings.Handle).Methods(http.MethodGet)

	// --- Оплата ---
	protected.HandleFunc("/payments", createPayment.Handle).Methods(http.MethodPost)

	// Создаем HTTP сервер
	addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	// Останавливаем воркеры после HTTP, чтобы события последних запросов успели попасть в outbox
	stopWorkers()
	workers.Wait()

	close(stopMetricsCh)

	log.Info("Server exited")
}

// buildGateways собирает реестр включённых способов оплаты
func buildGateways(cfg *config.Config, log *logger.Logger) (*gateway.Registry, error) {
	var adapters []gateway.Adapter

	if r := cfg.Gateways.Redirect; r.Enabled {
		verifier, err := signature.New(signature.Algorithm(r.SignatureAlgorithm))
		if err != nil {
			return nil, err
		}
		redirect, err := gateway.NewRedirectGateway(gateway.RedirectConfig{
			MerchantID:  r.MerchantID,
			MerchantKey: r.MerchantKey,
			Passphrase:  r.Passphrase,
			ProcessURL:  r.ProcessURL,
			ReturnURL:   r.ReturnURL,
			CancelURL:   r.CancelURL,
			NotifyURL:   r.NotifyURL,
		}, verifier, log)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, redirect)
		log.Info("Redirect gateway enabled (merchant=%s, signature=%s)", r.MerchantID, r.SignatureAlgorithm)
	}

	if cfg.Gateways.Cash.Enabled {
		adapters = append(adapters, gateway.NewCashGateway(log))
		log.Info("Cash payments enabled")
	}

	if d := cfg.Gateways.Direct; d.Enabled {
		charger := stripecharge.NewCharger(stripecharge.Config{
			SecretKey:     d.StripeSecretKey,
			Currency:      d.Currency,
			PaymentMethod: d.PaymentMethod,
		}, log)
		adapters = append(adapters, gateway.NewDirectChargeGateway(charger, time.Duration(d.Timeout)*time.Second, log))
		log.Info("Direct charge enabled (currency=%s, timeout=%ds)", d.Currency, d.Timeout)
	}

	if len(adapters) == 0 {
		return nil, gateway.ErrMisconfigured
	}
	return gateway.NewRegistry(adapters...), nil
}
