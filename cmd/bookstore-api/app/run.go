package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aq2208/gorder-bookstore/configs"
	"github.com/aq2208/gorder-bookstore/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-bookstore/internal/adapter/kafka"
	"github.com/aq2208/gorder-bookstore/internal/adapter/observ"
	"github.com/aq2208/gorder-bookstore/internal/adapter/queue"
	"github.com/aq2208/gorder-bookstore/internal/infrastructure/payment"
	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/aq2208/gorder-bookstore/internal/security"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/aq2208/gorder-bookstore/internal/worker"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/aq2208/gorder-bookstore/internal/adapter/http"
)

const shutdownGrace = 15 * time.Second

type App struct {
	Router *gin.Engine
	Server *http.Server
	Health *HealthServer

	cfg      configs.Config
	log      *zap.Logger
	poller   *worker.StockPoller
	mailq    *queue.Router
	courier  *kafka.Consumer
	shutdown []func(context.Context) error
}

func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	// init loggers: slog for request paths, zap for background workers
	slogger := logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)
	logger, err := observ.NewLogger(cfg.App.Name, cfg.App.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	shutdownTracing, err := observ.SetupTracing(ctx, observ.TracingConfig{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.Otel.ServiceVersion,
		Endpoint:       cfg.Otel.Endpoint,
		URLPath:        cfg.Otel.URLPath,
		Insecure:       cfg.Otel.Insecure,
		SampleRatio:    cfg.Otel.SampleRatio,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: %w", err)
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	slogger.Info("bookstore-api: storage ready", "driver", cfg.Storage.Driver)

	a := &App{cfg: cfg, log: logger}
	a.shutdown = append(a.shutdown, shutdownTracing)

	// load checksum salt
	cm, err := security.NewChecksumMaterial(cfg)
	if err != nil {
		store.close()
		return nil, nil, err
	}
	cs, err := security.NewChecksumService(cm)
	if err != nil {
		store.close()
		return nil, nil, err
	}

	mailer := queue.NewMailer(mailSender(cfg, logger), logger)
	notifier, closeRabbit, err := a.setupNotifier(cfg, mailer)
	if err != nil {
		store.close()
		return nil, nil, err
	}

	provider := payment.NewHostedClient(payment.Config{
		BaseURL:      cfg.Provider.BaseURL,
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		Timeout:      cfg.Provider.Timeout,
		MaxFailures:  cfg.Provider.MaxFailures,
		OpenTimeout:  cfg.Provider.OpenTimeout,
		UserAgent:    cfg.App.Name,
	})

	// usecases
	carts := usecase.NewCartManager(store.carts, store.items)
	writer := usecase.NewOrderWriter(carts, store.items, store.orders, store.stock, notifier)
	payments := usecase.NewPaymentReconciler(writer, carts, store.items, store.payments, provider,
		store.intents, store.idem, cs,
		usecase.ReconcilerConfig{Currency: cfg.Gateway.Currency, RedirectURL: cfg.Gateway.RedirectURL})
	tracking := usecase.NewTracking(store.orders, store.payments, writer)
	query := usecase.NewOrderQuery(store.orders, store.items)
	reconciler := usecase.NewStockReconciler(store.stock, cfg.Reconciler.Grace, cfg.Reconciler.Batch)

	a.poller = worker.NewStockPoller(reconciler, cfg.Reconciler.Interval, logger.Named("stock"))

	// register kafka-listener
	if cfg.Kafka.Enabled {
		grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		if err != nil {
			closeRabbit()
			store.close()
			return nil, nil, fmt.Errorf("kafka group: %w", err)
		}
		h := kafka.NewCourierStatusHandler(tracking, logger.Named("courier"))
		a.courier = kafka.NewConsumer(grp, []string{cfg.Kafka.TopicCourier}, h.Handle, logger.Named("kafka"))
		a.shutdown = append(a.shutdown, func(context.Context) error { return grp.Close() })
	}

	// init handlers + routers + middleware
	timeout := cfg.HTTP.RequestTimeout
	handlers := httpadapter.Handlers{
		Cart:     httpadapter.NewCartHandler(carts, timeout),
		Order:    httpadapter.NewOrderHandler(writer, payments, query, timeout),
		Payment:  httpadapter.NewPaymentHandler(payments, timeout),
		Tracking: httpadapter.NewTrackingHandler(tracking, timeout),
		Admin:    httpadapter.NewAdminHandler(query, timeout),
	}
	auth := middleware.NewAuthz(cfg)
	cv := middleware.NewChecksumVerify(cs)
	a.Router = httpadapter.NewRouter(handlers, auth, cv, slogger)

	a.Server = &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      otelhttp.NewHandler(a.Router, cfg.App.Name),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	if cfg.GRPC.Addr != "" {
		a.Health = NewHealthServer(cfg.App.Name, logger.Named("grpc"))
	}

	cleanup := func() {
		closeRabbit()
		store.close()
		_ = logger.Sync()
	}
	return a, cleanup, nil
}

func mailSender(cfg configs.Config, log *zap.Logger) queue.MailSender {
	if cfg.Mail.Host == "" {
		return queue.LogSender{Log: log.Named("mail")}
	}
	return queue.NewSMTPSender(queue.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		Timeout:  cfg.Mail.Timeout,
	})
}

// setupNotifier publishes notifications to RabbitMQ and consumes the mail queue
// when the broker is enabled; otherwise mail goes out inline.
func (a *App) setupNotifier(cfg configs.Config, mailer *queue.Mailer) (usecase.Notifier, func(), error) {
	if !cfg.Rabbit.Enabled {
		return queue.InlineNotifier{Mailer: mailer}, func() {}, nil
	}

	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	closeConn := func() { _ = conn.Close() }

	pubCh, err := conn.Channel()
	if err != nil {
		closeConn()
		return nil, nil, err
	}
	notifier, err := queue.NewRabbitNotifier(pubCh, queue.Topology{
		Exchange:   cfg.Rabbit.Exchange,
		Queue:      cfg.Rabbit.Queue,
		BindingKey: cfg.Rabbit.RoutingKey,
	})
	if err != nil {
		closeConn()
		return nil, nil, err
	}

	// register [queue-handler]
	subCh, err := conn.Channel()
	if err != nil {
		closeConn()
		return nil, nil, err
	}
	opts := []queue.RouterOption{queue.WithLogger(a.log.Named("mailq"))}
	if cfg.Rabbit.Prefetch > 0 {
		opts = append(opts, queue.WithPrefetch(cfg.Rabbit.Prefetch))
	}
	a.mailq = queue.NewRouter(subCh, opts...)
	a.mailq.Register(notifier.Queue(), queue.JSONHandler[usecase.NotificationMsg]{HandleFunc: mailer.HandleNotification})

	return notifier, closeConn, nil
}

// Run serves until ctx is cancelled, then drains every component. Listeners are
// bound before anything starts so a bind failure leaves nothing running.
func (a *App) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	var grpcLis net.Listener
	if a.Health != nil {
		grpcLis, err = net.Listen("tcp", a.cfg.GRPC.Addr)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("grpc listen: %w", err)
		}
	}
	if a.mailq != nil {
		if err := a.mailq.Start(); err != nil {
			_ = httpLis.Close()
			if grpcLis != nil {
				_ = grpcLis.Close()
			}
			return fmt.Errorf("mail queue: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Server.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcLis != nil {
		g.Go(func() error { return a.Health.Serve(grpcLis) })
		a.Health.SetServing(true)
	}
	if a.poller != nil {
		g.Go(func() error {
			a.poller.Run(gctx)
			return nil
		})
	}
	if a.courier != nil {
		g.Go(func() error {
			if err := a.courier.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.stop()
		return nil
	})
	return g.Wait()
}

func (a *App) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	a.log.Info("shutting down")
	if a.Health != nil {
		a.Health.SetServing(false)
	}
	if err := a.Server.Shutdown(ctx); err != nil {
		a.log.Warn("http shutdown", zap.Error(err))
	}
	if a.Health != nil {
		a.Health.Stop(ctx)
	}
	if a.mailq != nil {
		if err := a.mailq.Stop(ctx); err != nil {
			a.log.Warn("mail queue drain", zap.Error(err))
		}
	}
	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil {
			a.log.Warn("shutdown hook", zap.Error(err))
		}
	}
}
