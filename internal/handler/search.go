package handler

import (
	"net/http"

	"github.com/S1njack/price-tracker-demo/internal/dto"
	"github.com/S1njack/price-tracker-demo/internal/service"

	"github.com/gin-gonic/gin"
)

// SearchHandler owns the scrape-triggering endpoints: search-and-track,
// preview, tracking a selection and the on-demand price check.
type SearchHandler struct{ svc service.CatalogService }

func NewSearchHandler(svc service.CatalogService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// AddProduct searches every retailer and tracks the reconciled results.
func (h *SearchHandler) AddProduct(c *gin.Context) {
	var req dto.AddProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddFromSearch(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Preview runs the search without persisting anything.
func (h *SearchHandler) Preview(c *gin.Context) {
	var req dto.SearchPreviewRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Preview(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddSelected tracks listings the user picked from a preview.
func (h *SearchHandler) AddSelected(c *gin.Context) {
	var req dto.AddSelectedRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddSelected(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CheckPrices re-scrapes every tracked product's current price.
func (h *SearchHandler) CheckPrices(c *gin.Context) {
	resp, err := h.svc.CheckPrices(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
