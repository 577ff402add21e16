package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/clubgate/clubgate/internal/app/store"
	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/response"
	types "github.com/clubgate/clubgate/pkg/types"
)

// @Summary      List User Payments (Admin)
// @Description  Lists one user's payments, newest first.
// @Tags         Admin
// @Produce      json
// @Param        user_id query string true "User id"
// @Param        from query int false "Pagination offset"
// @Param        size query int false "Page size"
// @Success      200  {object}  handlers.RespUserListPayments
// @Router       /api/v1/admin/user/payment/list [get]
func ApiUserPaymentList(gs *store.GormStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		from := 0
		if v := c.Query("from"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				from = n
			}
		}
		size := 100
		if v := c.Query("size"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				size = n
			} else {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid size"))
				return
			}
		}

		req := &store.ScanPaymentsRequest{
			Filters: []*types.CommonFilter{{Field: "user_id", Operator: types.CommonFilterOperatorEq, Values: []any{userID}}},
			From:    from,
			Size:    size,
		}
		res, err := gs.ScanPayments(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(res.Items, func(p *models.Payment, _ int) *PaymentItem { return toPaymentItem(p) })
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

// @Summary      List User Memberships (Admin)
// @Description  Lists all memberships of a user across channels.
// @Tags         Admin
// @Produce      json
// @Param        user_id query string true "User id"
// @Success      200  {object}  handlers.RespUserListMemberships
// @Router       /api/v1/admin/user/membership/list [get]
func ApiUserMembershipList(gs *store.GormStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		items, err := gs.MembershipsForUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

func RegisterUserRoutes(r gin.IRouter, gs *store.GormStore) {
	r.GET("/user/payment/list", ApiUserPaymentList(gs))
	r.GET("/user/membership/list", ApiUserMembershipList(gs))
}
