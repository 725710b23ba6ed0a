package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/utils"
)

func (h *Handler) GetAllServiceOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repository.GetAllServiceOrders()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取工单列表成功", orders)
}

func (h *Handler) CreateServiceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID               string         `json:"id" validate:"required,max=32"`
		Description      string         `json:"description"`
		RequiredSkills   []domain.Skill `json:"requiredSkills" validate:"dive,oneof=painting electrical masonry plumbing welding"`
		EstimatedHours   int            `json:"estimatedHours" validate:"required,min=1"`
		Priority         string         `json:"priority" validate:"required,oneof=low medium high urgent"`
		ExpectedStartDay int            `json:"expectedStartDay" validate:"required,min=1"`
	}

	if err := h.readRequest(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	order := &domain.ServiceOrder{
		ID:               req.ID,
		Description:      req.Description,
		RequiredSkills:   req.RequiredSkills,
		EstimatedHours:   req.EstimatedHours,
		Priority:         domain.Priority(req.Priority),
		ExpectedStartDay: req.ExpectedStartDay,
	}
	if order.RequiredSkills == nil {
		order.RequiredSkills = []domain.Skill{}
	}

	if err := utils.ValidateServiceOrder(order); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateServiceOrder(order); err != nil {
		if !h.constraintError(w, r, err, map[string]string{"service_orders_pkey": "工单 ID 已存在"}) {
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "创建工单成功", order)
}

func (h *Handler) GetServiceOrder(w http.ResponseWriter, r *http.Request) {
	order := r.Context().Value(ServiceOrderCtx).(*domain.ServiceOrder)
	h.successResponse(w, r, "获取工单成功", order)
}

func (h *Handler) DeleteServiceOrder(w http.ResponseWriter, r *http.Request) {
	order := r.Context().Value(ServiceOrderCtx).(*domain.ServiceOrder)

	if err := h.repository.DeleteServiceOrder(order.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除工单成功", nil)
}
