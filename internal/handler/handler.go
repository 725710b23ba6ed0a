package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/progress"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/repository"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/runner"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	repository *repository.Repository
	translator ut.Translator
	channel    *amqp.Channel
	progress   *progress.Store
	metrics    *metrics.Metrics
	runner     *runner.Runner

	Mux *chi.Mux
}

func NewHandler(
	cfg *config.Config,
	repo *repository.Repository,
	ch *amqp.Channel,
	progressStore *progress.Store,
	m *metrics.Metrics,
	r *runner.Runner,
) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		repository: repo,
		translator: trans,
		channel:    ch,
		progress:   progressStore,
		metrics:    m,
		runner:     r,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(h.metrics.Middleware)

	h.Mux.Handle("/metrics", h.metrics.Handler())

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Get("/allocation-runs", h.GetMyAllocationRuns)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
			r.Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).Patch("/", h.UpdateUser)
				r.Patch("/password", h.UpdateUserPassword)
			})
		})

		r.Route("/operators", func(r chi.Router) {
			r.Get("/", h.GetAllOperators)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin, domain.RoleDispatcher})).Post("/", h.CreateOperator)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.operator)
				r.Get("/", h.GetOperator)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin, domain.RoleDispatcher})).Delete("/", h.DeleteOperator)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.GetAllServiceOrders)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin, domain.RoleDispatcher})).Post("/", h.CreateServiceOrder)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.serviceOrder)
				r.Get("/", h.GetServiceOrder)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin, domain.RoleDispatcher})).Delete("/", h.DeleteServiceOrder)
			})
		})

		r.Route("/allocation-runs", func(r chi.Router) {
			r.Get("/", h.GetAllAllocationRuns)
			r.Group(func(r chi.Router) {
				r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin, domain.RoleDispatcher}))
				r.Use(h.myInfo)
				r.Post("/", h.SubmitAllocationRun)
				r.Post("/generate", h.GenerateAllocationRun)
			})
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.allocationRun)
				r.Get("/", h.GetAllocationRun)
				r.Get("/progress", h.GetAllocationRunProgress)
			})
		})
	})
}
