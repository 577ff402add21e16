package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	mw "github.com/clubgate/clubgate/internal/app/api/middleware"
	"github.com/clubgate/clubgate/internal/app/service/membership"
	"github.com/clubgate/clubgate/internal/app/service/stats"
	"github.com/clubgate/clubgate/internal/app/service/sweep"
	"github.com/clubgate/clubgate/internal/app/store"
	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/config"
	"github.com/clubgate/clubgate/pkg/response"
	"github.com/clubgate/clubgate/pkg/types"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// @Summary      Admin Login
// @Description  Exchanges admin credentials for a bearer token.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Admin credentials"
// @Success      200  {object}  handlers.RespLogin
// @Router       /api/v1/admin/login [post]
func ApiAdminLogin(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(cfg.AdminAPI.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(cfg.AdminAPI.Password)) == 1
		if cfg.AdminAPI.Username == "" || !userOK || !passOK {
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, "invalid credentials"))
			return
		}
		token, err := mw.GenerateAdminToken(cfg, req.Username)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&LoginResponse{Token: token}))
	}
}

type ListPaymentsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type PaymentItem struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	MembershipID      string    `json:"membership_id"`
	PlanID            string    `json:"plan_id"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	AmountMinor       int64     `json:"amount_minor"`
	Currency          string    `json:"currency"`
	PaidAt            time.Time `json:"paid_at"`
	CreatedAt         time.Time `json:"created_at"`
}

func toPaymentItem(p *models.Payment) *PaymentItem {
	return &PaymentItem{
		ID:                p.ID,
		UserID:            p.UserID,
		MembershipID:      p.MembershipID,
		PlanID:            p.PlanID,
		ProviderPaymentID: p.ProviderPaymentID,
		AmountMinor:       p.AmountMinor,
		Currency:          p.Currency,
		PaidAt:            p.PaidAt,
		CreatedAt:         p.CreatedAt,
	}
}

type ListPaymentsResponse struct {
	Items []*PaymentItem `json:"items"`
	Total int64          `json:"total"`
}

// @Summary      List Payments (Admin)
// @Description  Retrieves a paginated and filterable list of the payment audit trail.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListPaymentsRequest true "List payments request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListPayments
// @Router       /api/v1/admin/list_payments [post]
func ApiListPayments(gs *store.GormStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListPaymentsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := gs.ScanPayments(c.Request.Context(), &store.ScanPaymentsRequest{
			Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(res.Items, func(p *models.Payment, _ int) *PaymentItem { return toPaymentItem(p) })
		c.JSON(http.StatusOK, response.OKT(&ListPaymentsResponse{Items: items, Total: res.Total}))
	}
}

// @Summary      Get Membership Statistics (Admin)
// @Description  Resolves the requested analytics data items.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body stats.StatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespMembershipStatistic
// @Router       /api/v1/admin/get_membership_statistic [post]
func ApiGetMembershipStatistic(svc *stats.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req stats.StatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetMembershipStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type GrantMembershipRequest struct {
	TelegramID int64  `json:"telegram_id"`
	PlanID     string `json:"plan_id"`
	OperatorID string `json:"operator_id"`
}

type GrantMembershipResponse struct {
	MembershipID string `json:"membership_id"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
	Renewal      bool   `json:"renewal"`
	Notify       string `json:"notify"`
}

// @Summary      Grant Membership (Admin)
// @Description  Grants a plan to a user without a payment.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body GrantMembershipRequest true "Grant membership request"
// @Success      200  {object}  handlers.RespGrantMembership
// @Router       /api/v1/admin/grant_membership [post]
func ApiGrantMembership(engine *membership.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantMembershipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.TelegramID == 0 || req.PlanID == "" || req.OperatorID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing telegram_id or plan_id or operator_id"))
			return
		}
		plan := cfg.GetPlanByID(req.PlanID)
		if plan == nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "unknown plan: "+req.PlanID))
			return
		}
		res, err := engine.CreateOrExtend(c.Request.Context(), membership.PurchaseParams{
			TelegramID: req.TelegramID,
			ChannelID:  plan.ChannelID,
			Plan:       plan,
			Reason:     types.MembershipChangeReasonGrant,
			Now:        time.Now(),
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		out := &GrantMembershipResponse{
			MembershipID: res.Membership.ID,
			Renewal:      res.Renewal,
			Notify:       string(res.Notify),
		}
		if res.Membership.ExpiryDate != nil {
			out.ExpiryDate = res.Membership.ExpiryDate.Format(time.RFC3339)
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

type RunSweepRequest struct {
	Job string `json:"job"`
}

type RunSweepResponse struct {
	Job       string `json:"job"`
	Processed int    `json:"processed"`
}

// @Summary      Run Sweep (Admin)
// @Description  Triggers one lifecycle sweep immediately, outside its schedule.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body RunSweepRequest true "Sweep job: expiry, reminder or upsell"
// @Success      200  {object}  handlers.RespRunSweep
// @Router       /api/v1/admin/run_sweep [post]
func ApiRunSweep(runner *sweep.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunSweepRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		n, err := runner.RunOnce(c.Request.Context(), req.Job)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&RunSweepResponse{Job: req.Job, Processed: n}))
	}
}

func RegisterAdminRoutes(r gin.IRouter, cfg *config.Config, gs *store.GormStore, engine *membership.Service, statsSvc *stats.Service, runner *sweep.Runner) {
	r.POST("/login", ApiAdminLogin(cfg))

	authed := r.Group("/")
	authed.Use(mw.AdminAuthMiddleware(cfg))
	authed.POST("/list_payments", ApiListPayments(gs))
	authed.POST("/get_membership_statistic", ApiGetMembershipStatistic(statsSvc))
	authed.POST("/grant_membership", ApiGrantMembership(engine, cfg))
	authed.POST("/run_sweep", ApiRunSweep(runner))
}
