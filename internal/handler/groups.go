package handler

import (
	"net/http"

	"github.com/S1njack/price-tracker-demo/internal/apierror"
	"github.com/S1njack/price-tracker-demo/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GroupsHandler struct {
	svc      service.CatalogService
	enqueuer service.BackfillEnqueuer
}

func NewGroupsHandler(svc service.CatalogService, enqueuer service.BackfillEnqueuer) *GroupsHandler {
	return &GroupsHandler{svc: svc, enqueuer: enqueuer}
}

func (h *GroupsHandler) List(c *gin.Context) {
	resp, err := h.svc.ListGroups(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GroupsHandler) Comparison(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid group ID"))
		return
	}
	resp, err := h.svc.GroupComparison(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GroupsHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid group ID"))
		return
	}
	if err := h.svc.DeleteGroup(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Backfill queues a history backfill job for the group. The scrape runs in
// the worker pool, so the response is only an acknowledgement.
func (h *GroupsHandler) Backfill(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid group ID"))
		return
	}
	if err := h.enqueuer.EnqueueBackfill(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true, "group_id": id.String()})
}
