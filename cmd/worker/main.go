package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/benvon/smart-todo-capture/internal/app"
	"github.com/benvon/smart-todo-capture/internal/config"
	"github.com/benvon/smart-todo-capture/internal/database"
	"github.com/benvon/smart-todo-capture/internal/logger"
	"github.com/benvon/smart-todo-capture/internal/pipeline"
	"github.com/benvon/smart-todo-capture/internal/queue"
	"github.com/benvon/smart-todo-capture/internal/recurrence"
	"github.com/benvon/smart-todo-capture/internal/services/gmail"
	"github.com/benvon/smart-todo-capture/internal/tasks"
	"github.com/benvon/smart-todo-capture/internal/workers"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging of generation requests")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger("worker", debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_provider", cfg.AIProvider),
		zap.Bool("mailbox_configured", cfg.MailboxConfigured()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	jobQueue, err := app.ConnectQueue(ctx, cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	extractor, err := app.NewExtractor(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Fatal("failed_to_create_extractor", zap.Error(err))
	}
	processor := app.NewProcessor(cfg, db, extractor, zapLogger, false)
	taskRepo := database.NewTaskRepository(db)

	// Left as a nil interface when no mailbox is configured so scan jobs are
	// dead-lettered rather than dereferencing a nil scanner
	var mailbox workers.MailboxScanner
	if cfg.MailboxConfigured() {
		client, err := gmail.NewClient(ctx, gmail.Config{
			CredentialsFile: cfg.GmailCredentialsFile,
			RefreshToken:    cfg.GmailRefreshToken,
			User:            cfg.GmailUser,
		}, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_create_gmail_client", zap.Error(err))
		}
		mailbox = pipeline.NewMailboxScanner(client, processor, taskRepo, database.NewAgentRunRepository(db), zapLogger)
	}

	jobProcessor := workers.NewJobProcessor(processor, mailbox, jobQueue, zapLogger)

	engine := recurrence.NewEngine(taskRepo, tasks.NewService(taskRepo, zapLogger), cfg.RecurrenceScanInterval, zapLogger)
	go engine.Start(ctx)

	if mailbox != nil && cfg.MailboxScanInterval > 0 {
		scheduler := workers.NewMailboxScheduler(jobQueue, cfg.MailboxScanInterval, queue.ScanMailboxPayload{}, zapLogger)
		go func() {
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("mailbox_scheduler_stopped_with_error", zap.Error(err))
			}
		}()
	}

	dlqGC := queue.NewGarbageCollector(jobQueue, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)
	go func() {
		if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("message_channel_closed")
					return
				}
				job := msg.GetJob()
				if err := jobProcessor.ProcessJob(ctx, msg); err != nil {
					zapLogger.Error("failed_to_process_job",
						zap.Error(err),
						zap.String("job_id", job.ID.String()),
						zap.String("job_type", string(job.Type)),
					)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	}()

	select {
	case <-sigChan:
		zapLogger.Info("shutdown_signal_received")
	case <-done:
		zapLogger.Warn("consumer_stopped")
	}

	cancel()
	<-done
	zapLogger.Info("worker_stopped")
}
