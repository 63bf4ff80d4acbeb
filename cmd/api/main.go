package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/aminsb/tradedesk/config"
	"github.com/aminsb/tradedesk/internal/alert"
	"github.com/aminsb/tradedesk/internal/exchange"
	"github.com/aminsb/tradedesk/internal/handler"
	"github.com/aminsb/tradedesk/internal/repository"
	"github.com/aminsb/tradedesk/internal/router"
	"github.com/aminsb/tradedesk/internal/service"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations and exit")
	flag.Parse()

	if *migrateFlag {
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get sql.DB: %v", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			log.Fatalf("Goose: failed to set dialect: %v", err)
		}
		log.Println("Running database migrations...")
		if err := goose.Up(sqlDB, "migrations"); err != nil {
			log.Fatalf("Goose migration failed: %v", err)
		}
		return
	}

	var notifier alert.Notifier
	if cfg.KafkaBroker != "" {
		notifier, err = alert.NewKafkaNotifier(cfg.KafkaBroker, cfg.KafkaAlertTopic, logger)
		if err != nil {
			log.Fatalf("Failed to initialize alert producer: %v", err)
		}
	} else {
		logger.Warn("KAFKA_BROKER not set, reconciliation alerts go to the log only")
		notifier = alert.NewLogNotifier(logger)
	}
	defer notifier.Close()

	orderRepo := repository.NewGormOrderRepository(db)
	coinRepo := repository.NewGormCoinRepository(db)
	connRepo := repository.NewGormConnectionRepository(db)
	registry := exchange.NewCachedRegistry(connRepo, logger)

	validator := service.NewValidator(logger)
	estimator := service.NewEstimator(logger)
	orderService := service.NewOrderService(orderRepo, coinRepo, registry, validator, estimator, notifier, logger)
	holdingsService := service.NewHoldingsService(orderRepo, coinRepo, logger)

	orderHandler := handler.NewOrderHandler(orderService, holdingsService)

	routerConfig := &router.Config{
		OrderHandler: orderHandler,
	}

	r := router.NewRouter(routerConfig)
	r.Run(fmt.Sprintf(":%s", cfg.ServerPort))
}
