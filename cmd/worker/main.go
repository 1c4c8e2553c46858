package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/roadscope/scene-processing-service/internal/bootstrap"
	"github.com/roadscope/scene-processing-service/internal/infra/config"
	"github.com/roadscope/scene-processing-service/internal/infra/metrics"
	"github.com/roadscope/scene-processing-service/internal/infra/rabbitmq"
	"github.com/roadscope/scene-processing-service/internal/infra/tracing"
	"github.com/roadscope/scene-processing-service/internal/usecase"
	"github.com/roadscope/scene-processing-service/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting scene-processing worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	var ready atomic.Bool
	metricsSrv := metrics.StartServer(cfg.MetricsPort, ready.Load, log)

	topology := rabbitmq.Topology{
		Exchange:      cfg.RabbitMQExchange,
		Queue:         cfg.RabbitMQProcessingQueue,
		CallbackQueue: cfg.RabbitMQCallbackQueue,
		DLQ:           cfg.RabbitMQDLQ,
	}

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	reporter := rabbitmq.NewCallbackReporter(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, reporter, log)
	fatalOnErr(err, "build pipeline")
	defer pipeline.Close()

	handler := usecase.NewSceneMessageHandler(pipeline.UseCase, dlqPub, log)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Topology:    topology,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, handler.Handle, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		ready.Store(false)
		cancel()
	}()

	ready.Store(true)
	log.Info("scene-processing worker started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("scene-processing worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
