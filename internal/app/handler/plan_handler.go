package handler

import (
	"net/http"

	"filingdesk/internal/app/dto"
	"filingdesk/internal/app/plan"

	"github.com/gin-gonic/gin"
)

// ============ Plans ============

func toPlanResponse(p plan.Plan) dto.PlanResponse {
	return dto.PlanResponse{
		Key:               p.Key,
		Title:             p.Title,
		Amount:            p.Amount,
		Currency:          plan.Currency,
		RequiredDocuments: append([]string{}, p.RequiredDocs...),
		OptionalDocuments: append([]string{}, p.OptionalDocs...),
		RequiredFields:    p.RequiredFields(),
	}
}

// GetPlans lists the filing plans
// @Summary List plans
// @Description Returns the plan catalogue. Prices are advisory, the server charges its own table price.
// @Tags Plans
// @Produce json
// @Success 200 {object} dto.PlanListResponse
// @Router /api/plans [get]
func (h *APIHandler) GetPlans(c *gin.Context) {
	plans := plan.All()
	response := dto.PlanListResponse{
		Plans: make([]dto.PlanResponse, 0, len(plans)),
		Total: len(plans),
	}
	for _, p := range plans {
		response.Plans = append(response.Plans, toPlanResponse(p))
	}
	c.JSON(http.StatusOK, response)
}

// GetPlan returns one plan
// @Summary Get plan
// @Tags Plans
// @Produce json
// @Param key path string true "Plan key"
// @Success 200 {object} dto.PlanResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{key} [get]
func (h *APIHandler) GetPlan(c *gin.Context) {
	p, ok := plan.Get(c.Param("key"))
	if !ok {
		h.errorResponse(c, http.StatusNotFound, codeNotFound, "plan not found")
		return
	}
	c.JSON(http.StatusOK, toPlanResponse(p))
}
