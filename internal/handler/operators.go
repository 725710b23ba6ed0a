package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/utils"
)

func (h *Handler) GetAllOperators(w http.ResponseWriter, r *http.Request) {
	operators, err := h.repository.GetAllOperators()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取操作员列表成功", operators)
}

func (h *Handler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string         `json:"id" validate:"required,max=32"`
		FullName    string         `json:"fullName" validate:"required"`
		Skills      []domain.Skill `json:"skills" validate:"required,min=1,dive,oneof=painting electrical masonry plumbing welding"`
		Level       string         `json:"level" validate:"required,oneof=junior mid senior expert"`
		Shift       string         `json:"shift" validate:"omitempty,oneof=morning afternoon night"`
		HoursPerDay int            `json:"hoursPerDay" validate:"required,min=1,max=24"`
	}

	if err := h.readRequest(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	operator := &domain.Operator{
		ID:          req.ID,
		FullName:    req.FullName,
		Skills:      req.Skills,
		Level:       domain.SkillLevel(req.Level),
		Shift:       domain.Shift(req.Shift),
		HoursPerDay: req.HoursPerDay,
	}

	// 标签无法检查技能是否重复
	if err := utils.ValidateOperator(operator); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateOperator(operator); err != nil {
		if !h.constraintError(w, r, err, map[string]string{"operators_pkey": "操作员 ID 已存在"}) {
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "创建操作员成功", operator)
}

func (h *Handler) GetOperator(w http.ResponseWriter, r *http.Request) {
	operator := r.Context().Value(OperatorCtx).(*domain.Operator)
	h.successResponse(w, r, "获取操作员成功", operator)
}

func (h *Handler) DeleteOperator(w http.ResponseWriter, r *http.Request) {
	operator := r.Context().Value(OperatorCtx).(*domain.Operator)

	if err := h.repository.DeleteOperator(operator.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除操作员成功", nil)
}
