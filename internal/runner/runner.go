package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/allocator"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/analysis"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/metrics"
)

// Store 为执行分配任务所需的持久化操作，由 repository.Repository 实现
type Store interface {
	GetAllOperators() ([]*domain.Operator, error)
	GetAllServiceOrders() ([]*domain.ServiceOrder, error)
	UpdateAllocationRunStatus(id string, status domain.AllocationRunStatus, message string) error
	FinishAllocationRun(run *domain.AllocationRun) error
}

// ProgressRecorder 由 progress.Store 实现
type ProgressRecorder interface {
	Start(ctx context.Context, runID string, status domain.AllocationRunStatus) error
	Record(ctx context.Context, runID string, champion domain.GenerationChampion) error
	SetStatus(ctx context.Context, runID string, status domain.AllocationRunStatus) error
}

type Runner struct {
	cfg      *config.Config
	store    Store
	progress ProgressRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New 创建 Runner，progress 和 m 可以为 nil
func New(cfg *config.Config, store Store, progress ProgressRecorder, m *metrics.Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    store,
		progress: progress,
		metrics:  m,
		logger:   logger,
	}
}

// DefaultParameters 返回配置中的默认遗传算法参数，请求中的参数会覆盖这些值
func DefaultParameters(cfg *config.Config) domain.AllocationRunParameters {
	return domain.AllocationRunParameters{
		PopulationSize:  cfg.Allocator.PopulationSize,
		MaxGenerations:  cfg.Allocator.MaxGenerations,
		MutationRate:    cfg.Allocator.MutationRate,
		MinMutationRate: cfg.Allocator.MinMutationRate,
		MutationDecay:   cfg.Allocator.MutationDecay,
		EliteCount:      cfg.Allocator.EliteCount,
		ReinitInterval:  cfg.Allocator.ReinitInterval,
		HorizonDays:     cfg.Allocator.HorizonDays,
		Selection:       cfg.Allocator.Selection,
		TournamentSize:  cfg.Allocator.TournamentSize,
		FitnessVariant:  cfg.Allocator.FitnessVariant,
		StagnationLimit: cfg.Allocator.StagnationLimit,
		Parallelism:     cfg.Allocator.Parallelism,
	}
}

func EngineParameters(p domain.AllocationRunParameters) *allocator.Parameters {
	parameters := &allocator.Parameters{
		PopulationSize:  p.PopulationSize,
		MaxGenerations:  p.MaxGenerations,
		MutationRate:    p.MutationRate,
		MinMutationRate: p.MinMutationRate,
		MutationDecay:   p.MutationDecay,
		EliteCount:      p.EliteCount,
		ReinitInterval:  p.ReinitInterval,
		HorizonDays:     p.HorizonDays,
		Selection:       allocator.SelectionStrategy(p.Selection),
		TournamentSize:  p.TournamentSize,
		FitnessVariant:  allocator.FitnessVariant(p.FitnessVariant),
		StagnationLimit: p.StagnationLimit,
		Parallelism:     p.Parallelism,
		Seed:            p.Seed,
	}

	if parameters.Selection == "" {
		parameters.Selection = allocator.SelectionTruncation
	}
	if parameters.FitnessVariant == "" {
		parameters.FitnessVariant = allocator.FitnessScaled
	}

	return parameters
}

// ErrInterrupted 表示任务因为 ctx 被取消而中断，任务已经恢复为 pending，可以重新执行
var ErrInterrupted = errors.New("分配任务被中断")

// Execute 使用当前的操作员表和工单表执行分配任务并保存结果
// 失败时任务会被标记为 failed，错误同时被返回
// ctx 被取消时任务恢复为 pending 并返回 ErrInterrupted，超时仍然视为失败
func (r *Runner) Execute(ctx context.Context, run *domain.AllocationRun) error {
	logger := r.logger.With("run_id", run.ID)

	if err := r.store.UpdateAllocationRunStatus(run.ID, domain.AllocationRunStatusRunning, ""); err != nil {
		return fmt.Errorf("无法更新任务状态: %w", err)
	}
	run.Status = domain.AllocationRunStatusRunning
	r.reportStart(ctx, logger, run.ID)

	result, err := r.execute(ctx, logger, run)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			r.interrupt(ctx, logger, run)
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		r.fail(ctx, logger, run, err)
		return err
	}

	if err := r.store.FinishAllocationRun(run); err != nil {
		err = fmt.Errorf("无法保存分配结果: %w", err)
		r.fail(ctx, logger, run, err)
		return err
	}

	r.metrics.RunFinished(result.Duration(), result.Generations(), run.Plan)
	r.reportStatus(ctx, logger, run.ID, domain.AllocationRunStatusFinished)
	return nil
}

func (r *Runner) execute(ctx context.Context, logger *slog.Logger, run *domain.AllocationRun) (*allocator.Result, error) {
	operators, orders, err := r.loadTables()
	if err != nil {
		return nil, err
	}

	horizonDays := int(run.Parameters.HorizonDays)
	opts := []allocator.Option{
		allocator.WithLogger(logger),
		allocator.WithGenerationHook(func(champion domain.GenerationChampion) {
			r.reportChampion(ctx, logger, run.ID, champion)
		}),
	}

	if run.Parameters.SeedWithGreedy {
		greedy, err := allocator.Greedy(operators, orders, horizonDays)
		if err != nil {
			return nil, err
		}
		opts = append(opts, allocator.WithSeedPlans(greedy))
	}

	engine, err := allocator.NewEngine(EngineParameters(run.Parameters), operators, orders, opts...)
	if err != nil {
		return nil, err
	}

	if r.cfg.Allocator.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.Allocator.Timeout)*time.Second)
		defer cancel()
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	plan := result.Plan()
	summary, err := analysis.Summarize(operators, orders, horizonDays, plan)
	if err != nil {
		return nil, err
	}

	run.Status = domain.AllocationRunStatusFinished
	run.Plan = &plan
	run.BestGeneration = result.BestGeneration()
	run.Champions = result.Champions(false)
	run.Summary = summary
	run.Message = fmt.Sprintf("共进化 %d 代，第 %d 代得到最优方案", result.Generations(), result.BestGeneration())

	return result, nil
}

func (r *Runner) loadTables() ([]domain.Operator, []domain.ServiceOrder, error) {
	operatorPtrs, err := r.store.GetAllOperators()
	if err != nil {
		return nil, nil, fmt.Errorf("无法获取操作员: %w", err)
	}
	orderPtrs, err := r.store.GetAllServiceOrders()
	if err != nil {
		return nil, nil, fmt.Errorf("无法获取工单: %w", err)
	}

	operators := make([]domain.Operator, len(operatorPtrs))
	for i, operator := range operatorPtrs {
		operators[i] = *operator
	}
	orders := make([]domain.ServiceOrder, len(orderPtrs))
	for i, order := range orderPtrs {
		orders[i] = *order
	}

	return operators, orders, nil
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, run *domain.AllocationRun, cause error) {
	logger.Error("分配任务失败", "error", cause)

	run.Status = domain.AllocationRunStatusFailed
	run.Message = cause.Error()
	r.metrics.RunFailed()

	if err := r.store.UpdateAllocationRunStatus(run.ID, run.Status, run.Message); err != nil {
		logger.Error("无法更新任务状态", "error", err)
	}
	r.reportStatus(ctx, logger, run.ID, run.Status)
}

func (r *Runner) interrupt(ctx context.Context, logger *slog.Logger, run *domain.AllocationRun) {
	logger.Warn("分配任务被中断，恢复为等待状态")

	run.Status = domain.AllocationRunStatusPending
	run.Message = "任务被中断，等待重新执行"

	if err := r.store.UpdateAllocationRunStatus(run.ID, run.Status, run.Message); err != nil {
		logger.Error("无法更新任务状态", "error", err)
	}
	r.reportStatus(ctx, logger, run.ID, run.Status)
}

// 进度只用于展示，写入失败时只记录日志
func (r *Runner) reportStart(ctx context.Context, logger *slog.Logger, runID string) {
	if r.progress == nil {
		return
	}
	ctx, cancel := r.redisContext(ctx)
	defer cancel()
	if err := r.progress.Start(ctx, runID, domain.AllocationRunStatusRunning); err != nil {
		logger.Warn("无法记录任务进度", "error", err)
	}
}

func (r *Runner) reportChampion(ctx context.Context, logger *slog.Logger, runID string, champion domain.GenerationChampion) {
	if r.progress == nil {
		return
	}
	ctx, cancel := r.redisContext(ctx)
	defer cancel()
	if err := r.progress.Record(ctx, runID, champion); err != nil {
		logger.Warn("无法记录任务进度", "generation", champion.Generation, "error", err)
	}
}

func (r *Runner) reportStatus(ctx context.Context, logger *slog.Logger, runID string, status domain.AllocationRunStatus) {
	if r.progress == nil {
		return
	}
	ctx, cancel := r.redisContext(ctx)
	defer cancel()
	if err := r.progress.SetStatus(ctx, runID, status); err != nil {
		logger.Warn("无法记录任务状态", "status", status, "error", err)
	}
}

// 任务超时或被取消后仍然需要写入最终状态
func (r *Runner) redisContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), time.Duration(r.cfg.Redis.OperationExpiration)*time.Second)
}
