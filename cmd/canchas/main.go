package main

import (
	"context"

	canchasrepo "canchas/internal/canchas/repository"
	cuponhandler "canchas/internal/cupones/handler"
	cuponrepo "canchas/internal/cupones/repository"
	cuponservice "canchas/internal/cupones/service"
	cuponvalidator "canchas/internal/cupones/validator"
	"canchas/internal/events"
	horariohandler "canchas/internal/horarios/handler"
	horariorepo "canchas/internal/horarios/repository"
	horarioservice "canchas/internal/horarios/service"
	horariovalidator "canchas/internal/horarios/validator"
	reservahandler "canchas/internal/reservas/handler"
	reservarepo "canchas/internal/reservas/repository"
	reservaservice "canchas/internal/reservas/service"
	reservavalidator "canchas/internal/reservas/validator"
	"canchas/internal/sweeper"
	"canchas/pkg/app"
	"canchas/pkg/config"
	mongotx "canchas/pkg/db/mongo"
	"canchas/pkg/kafka"
	kafkamw "canchas/pkg/kafka/middleware"
)

const ServiceName = "canchas"

type services struct {
	horarios horarioservice.HorarioService
	cupones  cuponservice.CuponService
	reservas reservaservice.ReservaService
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting canchas service")
	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown("clients", func(context.Context) error {
		cfg.GracefulShutdown()
		return nil
	})
	serverApp.Health().AddCheck("mongo", func(ctx context.Context) error {
		return cfg.Client.Mongo.Ping(ctx, nil)
	})
	if cfg.Client.Redis != nil {
		serverApp.Health().AddCheck("redis", func(ctx context.Context) error {
			return cfg.Client.Redis.Ping(ctx).Err()
		})
	}

	metrics := kafkamw.NewMetrics()
	publisher := initEvents(cfg, serverApp, metrics)
	svc := initServices(cfg, publisher)
	initPagosConsumer(cfg, serverApp, metrics, svc.reservas)
	initSweeper(cfg, serverApp, svc.reservas)

	serverApp.SetApp(
		horariohandler.NewHorarioHandler(svc.horarios, cfg.Log),
		cuponhandler.NewCuponHandler(svc.cupones, cfg.Log),
		reservahandler.NewReservaHandler(svc.reservas, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) services {
	txManager := mongotx.NewTransactionManager(cfg.Client.Mongo, cfg.MongoTransactions)
	canchas := canchasrepo.NewMongoCanchaRepository(cfg)

	horarios := horarioservice.NewHorarioService(
		horariorepo.NewMongoHorarioRepository(cfg, txManager),
		horariorepo.NewMongoDayLockRepository(cfg),
		canchas,
		horariovalidator.NewHorarioValidator(cfg.Log),
		cfg,
	)
	cupones := cuponservice.NewCuponService(
		cuponrepo.NewMongoCuponRepository(cfg, txManager),
		cuponvalidator.NewCuponValidator(cfg.Log),
		cfg,
	)
	reservas := reservaservice.NewReservaService(
		reservarepo.NewMongoReservaRepository(cfg),
		horarios,
		cupones,
		canchas,
		txManager,
		publisher,
		reservavalidator.NewReservaValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Services initialized",
		"database", cfg.MongoDatabaseName,
		"transactions", txManager.Atomic(),
	)
	return services{horarios: horarios, cupones: cupones, reservas: reservas}
}

func initEvents(cfg *config.Config, serverApp *app.Application, metrics *kafkamw.Metrics) events.Publisher {
	if !cfg.Kafka.Enabled {
		cfg.Log.Info("Kafka disabled, reserva events are not published")
		return events.NopPublisher()
	}

	topic := cfg.Kafka.ReservasTopic
	producer, err := kafka.NewProducer(cfg.Kafka, cfg.Log, topic, topic+".dlq")
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
	}

	if cfg.Kafka.EnableMiddleware {
		producer.Use(kafkamw.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafkamw.MetricsProducerMiddleware(metrics))
	}
	serverApp.Health().SetMetrics(metrics.Snapshot)
	serverApp.OnShutdown("kafka-producer", func(context.Context) error {
		return producer.Close()
	})

	cfg.Log.Info("Kafka producer ready", "topic", topic)
	return events.NewKafkaPublisher(producer, cfg.Log)
}

func initPagosConsumer(cfg *config.Config, serverApp *app.Application, metrics *kafkamw.Metrics, confirmer events.PaymentConfirmer) {
	if !cfg.Kafka.Enabled {
		return
	}

	topic := cfg.Kafka.PagosTopic
	consumer, err := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Log,
		topic,
		cfg.Kafka.ConsumerGroup,
		topic+".dlq",
		events.PagoHandler(confirmer, cfg.Log),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "topic", topic, "error", err)
	}
	if cfg.Kafka.EnableMiddleware {
		consumer.Use(kafkamw.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(kafkamw.MetricsConsumerMiddleware(metrics))
	}

	serverApp.Go(consumer.Start)
	serverApp.OnShutdown("kafka-consumer", func(context.Context) error {
		return consumer.Close()
	})
	cfg.Log.Info("Kafka consumer ready", "topic", topic, "group", cfg.Kafka.ConsumerGroup)
}

func initSweeper(cfg *config.Config, serverApp *app.Application, reservas reservaservice.ReservaService) {
	if cfg.PendingReservationTTL <= 0 {
		cfg.Log.Info("Pending reserva expiry disabled")
		return
	}

	s, err := sweeper.New(reservas, cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create reserva sweeper", "error", err)
	}
	s.Start()
	serverApp.OnShutdown("sweeper", func(context.Context) error {
		return s.Stop()
	})
}
