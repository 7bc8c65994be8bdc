package handler

import (
	"net/http"

	"trinity/internal/dto"
	"trinity/internal/service"

	"github.com/gin-gonic/gin"
)

// InvoiceItemsHandler exposes invoice lines read-only.
type InvoiceItemsHandler struct{ svc service.InvoiceService }

func NewInvoiceItemsHandler(svc service.InvoiceService) *InvoiceItemsHandler {
	return &InvoiceItemsHandler{svc: svc}
}

func (h *InvoiceItemsHandler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var filter dto.InvoiceItemFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListItems(c.Request.Context(), actor, filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InvoiceItemsHandler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.svc.GetItem(c.Request.Context(), actor, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
