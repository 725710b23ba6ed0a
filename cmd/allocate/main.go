package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/allocator"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/analysis"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/runner"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/seed"
	"gopkg.in/yaml.v3"
)

type options struct {
	file    string
	output  string
	seed    uint64
	greedy  bool
	verbose bool
}

func main() {
	opts := options{}
	flag.StringVar(&opts.file, "file", "", "问题文件 (YAML)，为空时使用默认的操作员和工单")
	flag.StringVar(&opts.output, "output", "", "将分配方案和统计报告写入的 YAML 文件")
	flag.Uint64Var(&opts.seed, "seed", 0, "随机数种子，会覆盖问题文件中的设置")
	flag.BoolVar(&opts.greedy, "greedy", false, "将贪心算法的结果放入初始种群")
	flag.BoolVar(&opts.verbose, "v", false, "输出每一代的进化日志")
	flag.Parse()

	/**********************************************
	 * 创建 logger
	 **********************************************/
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, logger, opts)
	stop()

	if err != nil {
		logger.Error("分配失败", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	/**********************************************
	 * 读取问题
	 **********************************************/
	problem, err := loadProblem(opts.file)
	if err != nil {
		return fmt.Errorf("无法读取问题文件: %w", err)
	}
	if opts.seed != 0 {
		problem.Parameters.Seed = opts.seed
	}
	if opts.greedy {
		problem.Parameters.SeedWithGreedy = true
	}

	/**********************************************
	 * 执行分配
	 **********************************************/
	horizonDays := int(problem.Parameters.HorizonDays)
	engineOpts := []allocator.Option{allocator.WithLogger(logger)}
	if problem.Parameters.SeedWithGreedy {
		plan, err := allocator.Greedy(problem.Operators, problem.Orders, horizonDays)
		if err != nil {
			return fmt.Errorf("贪心分配失败: %w", err)
		}
		logger.Info("贪心分配完成", "fitness", plan.Fitness)
		engineOpts = append(engineOpts, allocator.WithSeedPlans(plan))
	}

	engine, err := allocator.NewEngine(runner.EngineParameters(problem.Parameters), problem.Operators, problem.Orders, engineOpts...)
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	plan := result.Plan()
	summary, err := analysis.Summarize(problem.Operators, problem.Orders, horizonDays, plan)
	if err != nil {
		return fmt.Errorf("无法生成统计报告: %w", err)
	}

	for _, allocation := range plan.Allocations {
		logger.Info("分配结果",
			"order", allocation.OrderID,
			"operator", allocation.OperatorID,
			"day", allocation.Day,
			"status", allocation.Status,
		)
	}
	logger.Info("统计报告",
		"fitness", plan.Fitness,
		"best_generation", result.BestGeneration(),
		"assigned", summary.AssignedOrders,
		"unassigned", len(summary.UnassignedOrders),
		"on_time", summary.OnTimeOrders,
		"late", len(summary.LateOrders),
		"overtime_hours", summary.TotalOvertimeHours,
		"workload_stddev", summary.WorkloadStdDev,
	)

	if opts.output != "" {
		if err := writeOutput(opts.output, plan, summary); err != nil {
			return fmt.Errorf("无法写入结果文件: %w", err)
		}
		logger.Info("结果已写入文件", "file", opts.output)
	}

	return nil
}

func defaultParameters() domain.AllocationRunParameters {
	p := allocator.DefaultParameters()
	return domain.AllocationRunParameters{
		PopulationSize:  p.PopulationSize,
		MaxGenerations:  p.MaxGenerations,
		MutationRate:    p.MutationRate,
		MinMutationRate: p.MinMutationRate,
		MutationDecay:   p.MutationDecay,
		EliteCount:      p.EliteCount,
		ReinitInterval:  p.ReinitInterval,
		HorizonDays:     p.HorizonDays,
		Selection:       string(p.Selection),
		TournamentSize:  p.TournamentSize,
		FitnessVariant:  string(p.FitnessVariant),
		StagnationLimit: p.StagnationLimit,
		Parallelism:     p.Parallelism,
	}
}

func loadProblem(file string) (*seed.ProblemFile, error) {
	if file == "" {
		problem := &seed.ProblemFile{Parameters: defaultParameters()}
		for _, operator := range seed.DefaultOperators() {
			problem.Operators = append(problem.Operators, *operator)
		}
		for _, order := range seed.DefaultServiceOrders() {
			problem.Orders = append(problem.Orders, *order)
		}
		return problem, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return seed.ReadProblemYAML(f, defaultParameters())
}

func writeOutput(path string, plan domain.AllocationPlan, summary *domain.AllocationSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(map[string]any{
		"plan":    plan,
		"summary": summary,
	}); err != nil {
		return err
	}
	return encoder.Close()
}
