package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

var ErrNotFound = errors.New("没有找到分配任务的进度")

// Store 将运行中的分配任务进度保存在 redis 中
// 状态和代数放在一个 hash 里，每一代冠军的适应度按顺序放在一个 list 里
type Store struct {
	rdb        *redis.Client
	expiration time.Duration
}

func NewStore(rdb *redis.Client, expiration time.Duration) *Store {
	return &Store{
		rdb:        rdb,
		expiration: expiration,
	}
}

func statusKey(runID string) string {
	return fmt.Sprintf("allocation_run_%s_status", runID)
}

func fitnessKey(runID string) string {
	return fmt.Sprintf("allocation_run_%s_fitness", runID)
}

// Start 重置任务的进度
func (s *Store) Start(ctx context.Context, runID string, status domain.AllocationRunStatus) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, fitnessKey(runID))
		pipe.HSet(ctx, statusKey(runID), "status", string(status), "generation", -1)
		pipe.Expire(ctx, statusKey(runID), s.expiration)
		return nil
	})
	return err
}

// Record 追加一代冠军的适应度
func (s *Store) Record(ctx context.Context, runID string, champion domain.GenerationChampion) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, fitnessKey(runID), champion.Fitness)
		pipe.Expire(ctx, fitnessKey(runID), s.expiration)
		pipe.HSet(ctx, statusKey(runID), "generation", champion.Generation)
		return nil
	})
	return err
}

func (s *Store) SetStatus(ctx context.Context, runID string, status domain.AllocationRunStatus) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, statusKey(runID), "status", string(status))
		pipe.Expire(ctx, statusKey(runID), s.expiration)
		return nil
	})
	return err
}

func (s *Store) Get(ctx context.Context, runID string) (*domain.AllocationProgress, error) {
	fields, err := s.rdb.HGetAll(ctx, statusKey(runID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	values, err := s.rdb.LRange(ctx, fitnessKey(runID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	return parseProgress(runID, fields, values)
}

func parseProgress(runID string, fields map[string]string, values []string) (*domain.AllocationProgress, error) {
	progress := &domain.AllocationProgress{
		RunID:   runID,
		Status:  domain.AllocationRunStatus(fields["status"]),
		Fitness: make([]float64, len(values)),
	}

	generation, err := strconv.Atoi(fields["generation"])
	if err != nil {
		return nil, fmt.Errorf("无法解析任务 %s 的代数: %w", runID, err)
	}
	progress.Generation = generation

	for i, value := range values {
		fitness, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("无法解析任务 %s 第 %d 代的适应度: %w", runID, i, err)
		}
		progress.Fitness[i] = fitness
	}

	return progress, nil
}
