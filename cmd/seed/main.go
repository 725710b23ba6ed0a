package main

import (
	"context"
	"database/sql"
	"flag"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/repository"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/seed"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var randomSeed uint64
	var operatorsFile string
	var ordersFile string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入随机操作员, 3: 插入随机工单, 4: 插入默认数据, 5: 从 CSV 导入)")
	flag.IntVar(&n, "n", 0, "要插入的记录数量，为 0 时使用配置中的数量")
	flag.Uint64Var(&randomSeed, "seed", 0, "随机数种子，为 0 时随机选取")
	flag.StringVar(&operatorsFile, "operators", "", "操作员 CSV 文件")
	flag.StringVar(&ordersFile, "orders", "", "工单 CSV 文件")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)
	if err := repo.Migrate(); err != nil {
		logger.Error("无法初始化数据库表", "error", err)
		return
	}

	if randomSeed == 0 {
		randomSeed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(randomSeed, randomSeed))

	count := func(fallback int) int {
		if n > 0 {
			return n
		}
		return fallback
	}

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		cnt := 0
		for i := 0; i < count(cfg.Seed.User.Count); i++ {
			user, err := utils.GenerateRandomUser(rng, cfg.Seed.User.Password, cfg.Email.UserDomain)
			if err != nil {
				slog.Error("无法生成随机用户", slog.String("error", err.Error()))
				continue
			}

			if err := repo.CreateUser(user); err != nil {
				slog.Error("无法插入用户", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入用户成功", slog.Int("count", cnt))
	case 2:
		// 编号接在已有的操作员之后
		existing, err := repo.GetAllOperators()
		if err != nil {
			slog.Error("无法获取操作员", slog.String("error", err.Error()))
			return
		}

		operators := make([]*domain.Operator, count(cfg.Seed.Operators))
		for i := range operators {
			operators[i] = utils.GenerateRandomOperator(rng, len(existing)+i+1)
		}

		inserted, _ := seed.Insert(repo, operators, nil)
		slog.Info("插入操作员成功", slog.Int("count", inserted), slog.Uint64("seed", randomSeed))
	case 3:
		existing, err := repo.GetAllServiceOrders()
		if err != nil {
			slog.Error("无法获取工单", slog.String("error", err.Error()))
			return
		}

		orders := make([]*domain.ServiceOrder, count(cfg.Seed.Orders))
		for i := range orders {
			orders[i] = utils.GenerateRandomServiceOrder(rng, len(existing)+i+1, cfg.Seed.HorizonDays)
		}

		_, inserted := seed.Insert(repo, nil, orders)
		slog.Info("插入工单成功", slog.Int("count", inserted), slog.Uint64("seed", randomSeed))
	case 4:
		operators, orders := seed.Insert(repo, seed.DefaultOperators(), seed.DefaultServiceOrders())
		slog.Info("插入默认数据成功", slog.Int("operators", operators), slog.Int("orders", orders))
	case 5:
		var operators []*domain.Operator
		var orders []*domain.ServiceOrder

		if operatorsFile != "" {
			operators, err = readCSV(operatorsFile, seed.ReadOperatorsCSV)
			if err != nil {
				slog.Error("无法读取操作员文件", slog.String("error", err.Error()))
				return
			}
		}
		if ordersFile != "" {
			orders, err = readCSV(ordersFile, seed.ReadServiceOrdersCSV)
			if err != nil {
				slog.Error("无法读取工单文件", slog.String("error", err.Error()))
				return
			}
		}

		insertedOperators, insertedOrders := seed.Insert(repo, operators, orders)
		slog.Info("导入数据成功", slog.Int("operators", insertedOperators), slog.Int("orders", insertedOrders))
	default:
		slog.Error("指定的操作非法")
	}
}

func readCSV[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	file, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer file.Close()

	return read(file)
}
