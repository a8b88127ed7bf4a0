package main

import (
	"labbook/internal/notify"
	"labbook/internal/questions"
	"labbook/internal/slots/handler"
	"labbook/internal/slots/repository"
	"labbook/internal/slots/service"
	"labbook/internal/slots/validator"
	"labbook/pkg/app"
	"labbook/pkg/config"
	"labbook/pkg/kafka"
	kafka_config "labbook/pkg/kafka/config"
)

const ServiceName = "labbook"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting labbook service")

	dispatcher, producer := initDispatcher(cfg)
	if producer != nil {
		defer func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
		}()
	}

	slotService, bookingService, sweeper := initServices(cfg, dispatcher)

	api := handler.NewAPI(
		handler.NewSlotHandler(slotService, cfg.Log),
		handler.NewBookingHandler(bookingService, cfg.Log),
		handler.NewSweepHandler(sweeper, cfg.Log),
	)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(api, handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log))
	serverApp.AddBackground(sweeper)
	serverApp.Run()
}

func initServices(cfg *config.Config, dispatcher notify.Dispatcher) (service.SlotService, service.BookingService, *service.Sweeper) {
	slotValidator := validator.NewSlotValidator(cfg.Log, cfg.MaxBatchDays, cfg.MaxSlotsPerDay)
	slotRepo := repository.NewMongoSlotRepository(cfg)
	lockRepo := repository.NewSlotLockRepository(cfg)
	answerRepo := repository.NewMongoAnswerRepository(cfg)

	provider := initQuestionProvider(cfg)

	slotService := service.NewSlotService(slotRepo, lockRepo, slotValidator, dispatcher, cfg)
	bookingService := service.NewBookingService(slotRepo, answerRepo, provider, slotValidator, dispatcher, cfg)
	sweeper := service.NewSweeper(slotRepo, cfg.SweepInterval, cfg.SweepBatchSize, cfg.Log)

	cfg.Log.Info("Slot services initialized", "database", cfg.MongoDatabaseName)
	return slotService, bookingService, sweeper
}

func initQuestionProvider(cfg *config.Config) questions.Provider {
	if cfg.QuestionServiceURL == "" {
		cfg.Log.Info("Question service not configured, bookings require no answers")
		return questions.NewNoneProvider()
	}
	return questions.NewHTTPProvider(cfg.QuestionServiceURL, cfg.QuestionServiceTimeout, cfg.Log)
}

func initDispatcher(cfg *config.Config) (notify.Dispatcher, *kafka.Producer) {
	kafkaCfg := kafka_config.Load()
	if !kafkaCfg.Enabled() || cfg.NotifyTopic == "" {
		cfg.Log.Info("Kafka not configured, notifications disabled")
		return notify.NewNopDispatcher(), nil
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.NotifyTopic, cfg.NotifyDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	cfg.Log.Info("Notification dispatcher initialized", "topic", cfg.NotifyTopic)
	return notify.NewKafkaDispatcher(producer, ServiceName, cfg.Log), producer
}
