package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/velmie/streambox"
	"github.com/velmie/streambox/logging"
	"github.com/velmie/streambox/metrics"
	"github.com/velmie/streambox/rabbitmq"
	"github.com/velmie/streambox/sqlstore"
)

const shutdownTimeout = 10 * time.Second

func newRelayCommand(rootOpts *rootOptions) *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Publish outbox records and stage inbound messages through RabbitMQ",
		Long: `Run until interrupted:

  outbox boxes  a scheduler publishes pending records to the exchange with the box
                routing key and finishes them once the broker confirms.
  inbox boxes   a consumer stages messages from the box queue as pending records.
                Projection runs in the service that owns the inbox.

Schedules come from streambox.scheduler; nothing is scheduled unless enabled is true.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			boxes, err := rootOpts.cfg.selectBoxes(names)
			if err != nil {
				return err
			}
			logger, err := rootOpts.logger(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runRelay(ctx, rootOpts.cfg, boxes, logger)
		},
	}

	cmd.Flags().StringSliceVar(&names, "box", nil, "limit to these boxes (repeatable)")

	return cmd
}

func runRelay(ctx context.Context, cfg Config, boxes []BoxConfig, logger *logging.Logger) error {
	if cfg.RabbitMQ.URL == "" {
		return errors.New("config: rabbitmq.url is required")
	}

	recorder, err := metrics.New(prometheus.DefaultRegisterer, cfg.Metrics.Namespace)
	if err != nil {
		return err
	}
	opts := []streambox.Option{
		streambox.WithLogger(logger),
		streambox.WithMetrics(recorder),
		streambox.WithPendingInterval(cfg.Metrics.PendingInterval),
	}

	base, stores, err := openStoresFor(ctx, cfg, boxes)
	if err != nil {
		return err
	}
	defer base.Close()

	conn, err := rabbitmq.Dial(ctx, rabbitmq.ConnectionConfig{
		URL:            cfg.RabbitMQ.URL,
		ConnectTimeout: cfg.RabbitMQ.ConnectTimeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	exchange := &rabbitmq.ExchangeConfig{Name: cfg.RabbitMQ.Exchange, Kind: cfg.RabbitMQ.ExchangeKind, Durable: true}
	lifecycle := streambox.NewLifecycle(cfg.Scheduler, nil, opts...)
	consumerErrs := make(chan error, len(boxes))

	for _, box := range boxes {
		store := stores[box.Name]
		switch box.Kind {
		case streambox.KindOutbox:
			ch, err := rabbitmq.OpenPublisher(conn, rabbitmq.Topology{Exchange: exchange})
			if err != nil {
				return fmt.Errorf("box %q: %w", box.Name, err)
			}
			sender, err := rabbitmq.NewSender(ch, rabbitmq.SenderConfig{
				Exchange:   cfg.RabbitMQ.Exchange,
				RoutingKey: box.routingKey(),
				AppID:      cfg.Log.AppName,
			})
			if err != nil {
				return fmt.Errorf("box %q: %w", box.Name, err)
			}
			if err := lifecycle.Add(streambox.NewRelayBox(box.Name, store, sender, opts...)); err != nil {
				return err
			}
		case streambox.KindInbox:
			consumer, deliveries, err := openInboxConsumer(conn, cfg.RabbitMQ, box, store, logger, opts)
			if err != nil {
				return fmt.Errorf("box %q: %w", box.Name, err)
			}
			go func() {
				if err := consumer.Run(ctx, deliveries); err != nil && !errors.Is(err, context.Canceled) {
					consumerErrs <- fmt.Errorf("box %q: consumer: %w", box.Name, err)
				}
			}()
		}
	}

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := lifecycle.Start(ctx); err != nil {
		logger.Error("some boxes were not scheduled", "err", err)
	}
	defer lifecycle.Stop()
	logger.Info("relay running", "boxes", len(boxes), "schedulers", lifecycle.Registry().Names())

	select {
	case <-ctx.Done():
		logger.Info("relay stopping")

		return nil
	case err := <-consumerErrs:
		return err
	case amqpErr := <-closed:
		if amqpErr == nil {
			return rabbitmq.ErrConnectionClosed
		}

		return fmt.Errorf("rabbitmq connection lost: %w", amqpErr)
	}
}

func openStoresFor(ctx context.Context, cfg Config, boxes []BoxConfig) (*sqlstore.Store, map[string]*sqlstore.Store, error) {
	opts := &rootOptions{cfg: cfg}

	return opts.openStores(ctx, boxes)
}

func openInboxConsumer(
	conn *amqp.Connection,
	cfg RabbitMQConfig,
	box BoxConfig,
	store streambox.Store,
	logger streambox.Logger,
	opts []streambox.Option,
) (*rabbitmq.Consumer, <-chan amqp.Delivery, error) {
	topology := rabbitmq.Topology{Queue: &rabbitmq.QueueConfig{Name: box.queue(), Durable: true}}
	if cfg.Exchange != "" {
		topology.Exchange = &rabbitmq.ExchangeConfig{Name: cfg.Exchange, Kind: cfg.ExchangeKind, Durable: true}
		topology.Bind = &rabbitmq.BindConfig{
			QueueName:    box.queue(),
			ExchangeName: cfg.Exchange,
			RoutingKeys:  []string{box.routingKey()},
		}
	}
	_, deliveries, err := rabbitmq.OpenConsumer(conn, topology, box.queue(), cfg.Prefetch)
	if err != nil {
		return nil, nil, err
	}

	inbox := streambox.NewInbox(box.Name, store, streambox.MustNewRegistry(), streambox.NewProjectionMux(), opts...)
	consumer, err := rabbitmq.NewConsumer(inbox, logger)
	if err != nil {
		return nil, nil, err
	}

	return consumer, deliveries, nil
}

func serveMetrics(addr string, logger streambox.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()

	return srv
}
