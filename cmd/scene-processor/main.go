package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

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

// scene-processor handles the single scene described by its environment and exits.
func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scene, envErr := config.LoadSceneEnv()
	if envErr != nil {
		log.Error("scene environment incomplete", zap.Error(envErr))
	}
	log = log.With(zap.String("scene_id", scene.SceneID))

	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.WithoutCancel(ctx))
	}

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Error("connect to rabbitmq", zap.Error(err))
		return 1
	}
	defer rmqConn.Close()

	topologyCh, err := rmqConn.Channel()
	if err != nil {
		log.Error("open rabbitmq channel", zap.Error(err))
		return 1
	}
	err = rabbitmq.Topology{
		Exchange:      cfg.RabbitMQExchange,
		Queue:         cfg.RabbitMQProcessingQueue,
		CallbackQueue: cfg.RabbitMQCallbackQueue,
		DLQ:           cfg.RabbitMQDLQ,
	}.Declare(topologyCh)
	topologyCh.Close()
	if err != nil {
		log.Error("declare rabbitmq topology", zap.Error(err))
		return 1
	}

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	if err != nil {
		log.Error("create rabbitmq publisher", zap.Error(err))
		return 1
	}
	defer pub.Close()

	// From here on the task token is reachable, so every failure is reported against it.
	pipeline, err := bootstrap.NewScenePipeline(ctx, cfg, rabbitmq.NewCallbackReporter(pub), scene.TaskToken, log)
	if err != nil {
		log.Error("build pipeline", zap.Error(err))
		return 1
	}
	defer pipeline.Close()

	err = pipeline.UseCase.Execute(ctx, usecase.SceneInput{
		SceneID:      scene.SceneID,
		InputKey:     scene.InputKey,
		OutputPrefix: scene.OutputPrefix,
		TaskToken:    scene.TaskToken,
	})

	if cfg.PushgatewayURL != "" {
		if perr := metrics.Push(cfg.PushgatewayURL, "scene-processor", scene.SceneID); perr != nil {
			log.Warn("metrics push failed", zap.Error(perr))
		}
	}

	if err != nil {
		log.Error("scene processing failed", zap.Error(err))
		return 1
	}
	return 0
}

// fatalOnErr covers the steps before a logger exists.
func fatalOnErr(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}
