package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/allocator"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/progress"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/runner"
)

type allocationRunRequest struct {
	domain.AllocationRunParameters
	NotifyMe bool `json:"notifyMe"` // 任务结束后是否发送邮件，只对异步任务有效
}

// readAllocationRunRequest 读取并检查分配参数，请求中没有给出的参数使用配置中的默认值
func (h *Handler) readAllocationRunRequest(r *http.Request) (*allocationRunRequest, error) {
	req := &allocationRunRequest{
		AllocationRunParameters: runner.DefaultParameters(h.config),
	}

	if err := h.readRequest(r, req); err != nil {
		return nil, err
	}
	// 标签之外的约束，例如锦标赛规模
	if err := runner.EngineParameters(req.AllocationRunParameters).Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

func (h *Handler) newAllocationRun(r *http.Request, parameters domain.AllocationRunParameters) (*domain.AllocationRun, error) {
	sub, err := strconv.ParseInt(r.Context().Value(SubCtxKey).(string), 10, 64)
	if err != nil {
		return nil, err
	}

	run := &domain.AllocationRun{
		ID:          uuid.NewString(),
		Status:      domain.AllocationRunStatusPending,
		Parameters:  parameters,
		RequestedBy: sub,
	}
	if err := h.repository.CreateAllocationRun(run); err != nil {
		return nil, err
	}

	return run, nil
}

func (h *Handler) GetAllAllocationRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetAllAllocationRuns()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取分配任务列表成功", runs)
}

// GenerateAllocationRun 同步执行分配，请求会一直等到任务结束
func (h *Handler) GenerateAllocationRun(w http.ResponseWriter, r *http.Request) {
	req, err := h.readAllocationRunRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	run, err := h.newAllocationRun(r, req.AllocationRunParameters)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.runner.Execute(r.Context(), run); err != nil {
		switch {
		case errors.Is(err, allocator.ErrInvalidParameters), errors.Is(err, allocator.ErrInvalidPlan):
			h.errorResponse(w, r, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			h.errorResponse(w, r, "分配超时，请减少迭代次数或改为提交异步任务")
		case errors.Is(err, runner.ErrInterrupted):
			// 客户端已经断开，同步任务不会被重新执行
			if err := h.repository.UpdateAllocationRunStatus(run.ID, domain.AllocationRunStatusFailed, "客户端已断开"); err != nil {
				h.logInternalServerError(r, err)
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "分配完成", run)
}

// SubmitAllocationRun 将分配任务放入队列，由 worker 执行
func (h *Handler) SubmitAllocationRun(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	req, err := h.readAllocationRunRequest(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	run, err := h.newAllocationRun(r, req.AllocationRunParameters)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	job := domain.AllocationJob{
		RunID:      run.ID,
		Parameters: run.Parameters,
	}
	if req.NotifyMe {
		job.NotifyEmail = myInfo.Email
	}

	if err := h.publish(h.config.RabbitMQ.AllocationQueue, job); err != nil {
		// 任务不会被执行，需要标记为失败
		if updateErr := h.repository.UpdateAllocationRunStatus(run.ID, domain.AllocationRunStatusFailed, "无法提交到任务队列"); updateErr != nil {
			err = errors.Join(err, updateErr)
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "分配任务已提交", run)
}

func (h *Handler) GetAllocationRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(AllocationRunCtx).(*domain.AllocationRun)
	h.successResponse(w, r, "获取分配任务成功", run)
}

func (h *Handler) GetAllocationRunProgress(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(AllocationRunCtx).(*domain.AllocationRun)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	p, err := h.progress.Get(ctx, run.ID)
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrNotFound):
			// redis 中的进度已经过期或者任务还没有开始，使用数据库中的记录
			h.successResponse(w, r, "获取分配进度成功", progressFromRun(run))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取分配进度成功", p)
}

func progressFromRun(run *domain.AllocationRun) *domain.AllocationProgress {
	p := &domain.AllocationProgress{
		RunID:      run.ID,
		Status:     run.Status,
		Generation: len(run.Champions) - 1,
		Fitness:    make([]float64, len(run.Champions)),
	}
	for i, champion := range run.Champions {
		p.Fitness[i] = champion.Fitness
	}
	return p
}
