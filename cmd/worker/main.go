package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/progress"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/repository"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/runner"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	dbCtx, dbCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer dbCancel()

	if err := dbpool.PingContext(dbCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	redisCtx, redisCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer redisCancel()

	if err := rdb.Ping(redisCtx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	/**********************************************
	 * 创建 runner，并通过单独的端口暴露 metrics
	 **********************************************/
	m := metrics.New(nil)
	r := runner.New(cfg, repo, progress.NewStore(rdb, time.Duration(cfg.Redis.ProgressExpiration)*time.Second), m, logger)

	metricsSrv := &http.Server{
		Addr:     fmt.Sprintf(":%s", cfg.Worker.MetricsPort),
		Handler:  m.Handler(),
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("无法启动 metrics 服务", "error", err)
		}
	}()

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", "error", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", "error", err)
		return
	}
	defer ch.Close()

	for _, queue := range []string{cfg.RabbitMQ.EmailQueue, cfg.RabbitMQ.AllocationQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			logger.Error("无法声明队列", "queue", queue, "error", err)
			return
		}
	}

	// 分配任务很耗 CPU，每次只取一个
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := ch.Consume(
		cfg.RabbitMQ.AllocationQueue,
		"",
		false, // 任务结束后再手动确认
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("无法消费消息", "error", err)
		return
	}

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 用于关闭 goroutine 的上下文，取消后正在执行的任务会在当前一代结束后中断并重新入队
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	w := &worker{
		cfg:    cfg,
		repo:   repo,
		runner: r,
		ch:     ch,
		logger: logger,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("消息通道已关闭")
					return
				}
				w.handle(ctx, msg)
			}
		}
	}()

	logger.Info("等待分配任务...（按 CTRL+C 退出）")
	<-sigChan

	// 优雅退出
	logger.Info("正在关闭 allocation worker...")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭 metrics 服务失败", "error", err)
	}
	logger.Info("allocation worker 已成功关闭")
}

type worker struct {
	cfg    *config.Config
	repo   *repository.Repository
	runner *runner.Runner
	ch     *amqp.Channel
	logger *slog.Logger
}

func (w *worker) handle(ctx context.Context, msg amqp.Delivery) {
	job := domain.AllocationJob{}
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		w.logger.Error("任务反序列化失败", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	logger := w.logger.With("run_id", job.RunID)
	logger.Info("收到分配任务")

	run, err := w.repo.GetAllocationRunByID(job.RunID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			logger.Error("分配任务不存在")
			_ = msg.Nack(false, false)
		default:
			logger.Error("无法获取分配任务", "error", err)
			_ = msg.Nack(false, true) // 将消息重新入队
		}
		return
	}

	// 消息可能被重复投递，已经结束的任务不再执行
	if run.Status == domain.AllocationRunStatusFinished || run.Status == domain.AllocationRunStatusFailed {
		logger.Warn("分配任务已经结束，忽略", "status", run.Status)
		_ = msg.Ack(false)
		return
	}

	err = w.runner.Execute(ctx, run)
	if ackErr := settle(msg, err); ackErr != nil {
		logger.Error("无法确认消息", "error", ackErr)
	}
	if errors.Is(err, runner.ErrInterrupted) {
		logger.Warn("worker 正在关闭，任务已重新入队")
		return
	}
	if err != nil {
		// 失败原因已经记录在任务中
		logger.Error("分配任务执行失败", "error", err)
	}

	if job.NotifyEmail != "" {
		if err := w.notify(job.NotifyEmail, run); err != nil {
			logger.Error("无法发送任务结束邮件", "error", err)
		}
	}
}

// settle 根据执行结果确认消息
// 被中断的任务重新入队，由下一个 worker 继续执行；其余情况（包括失败）都确认消息，失败原因已经保存在任务中
func settle(msg amqp.Delivery, err error) error {
	if errors.Is(err, runner.ErrInterrupted) {
		return msg.Nack(false, true)
	}
	return msg.Ack(false)
}

func (w *worker) notify(to string, run *domain.AllocationRun) error {
	data := domain.AllocationFinishedMailData{
		RunID:       run.ID,
		Status:      string(run.Status),
		Generations: len(run.Champions),
		Message:     run.Message,
	}
	if run.Plan != nil {
		data.Fitness = run.Plan.Fitness
	}
	if run.Summary != nil {
		data.AssignedOrders = run.Summary.AssignedOrders
		data.UnassignedOrders = len(run.Summary.UnassignedOrders)
	}

	body, err := json.Marshal(domain.MailMessage{
		Type: domain.MailTypeAllocationFinished,
		To:   to,
		Data: data,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.cfg.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	return w.ch.PublishWithContext(
		ctx,
		"",
		w.cfg.RabbitMQ.EmailQueue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
