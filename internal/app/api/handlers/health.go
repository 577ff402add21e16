package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clubgate/clubgate/pkg/response"
)

// @Summary      Health check
// @Description  Returns service liveness
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{
		"status":  "ok",
		"service": "clubgate",
	}))
}

func RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/healthz", Healthz)
}
