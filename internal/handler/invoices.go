package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"trinity/internal/dto"
	"trinity/internal/infra"
	"trinity/internal/service"

	"github.com/gin-gonic/gin"
)

type InvoicesHandler struct {
	svc       service.InvoiceService
	storeName string
}

func NewInvoicesHandler(svc service.InvoiceService, storeName string) *InvoicesHandler {
	return &InvoicesHandler{svc: svc, storeName: storeName}
}

// Create godoc
// @Summary      Create an invoice
// @Description  Reserves stock for every line, snapshots product data and assigns the invoice number in one transaction.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateInvoiceRequest true "Invoice with items"
// @Success      201  {object} dto.InvoiceResponse
// @Failure      400  {object} apierror.ValidationError
// @Failure      503  {object} apierror.APIError
// @Router       /v1/invoices/ [post]
func (h *InvoicesHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req dto.CreateInvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary      List invoices
// @Description  Staff see every invoice; customers only their own.
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object} dto.InvoiceListResponse
// @Router       /v1/invoices/ [get]
func (h *InvoicesHandler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var filter dto.InvoiceFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), actor, filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Invoice detail
// @Description  Staff also receive the stock movements recorded for the invoice.
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "Invoice UUID"
// @Success      200  {object} dto.InvoiceResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/invoices/{id}/ [get]
func (h *InvoicesHandler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update godoc
// @Summary      Replace the mutable fields of an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                   true "Invoice UUID"
// @Param        body body dto.UpdateInvoiceRequest true "status, payment_method, tax_rate, notes"
// @Success      200  {object} dto.InvoiceResponse
// @Failure      403  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/invoices/{id}/ [put]
func (h *InvoicesHandler) Update(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.UpdateInvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Patch godoc
// @Summary      Change some fields of an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                  true "Invoice UUID"
// @Param        body body dto.PatchInvoiceRequest true "Fields to change"
// @Success      200  {object} dto.InvoiceResponse
// @Failure      403  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/invoices/{id}/ [patch]
func (h *InvoicesHandler) Patch(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.PatchInvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Patch(c.Request.Context(), actor, id, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete godoc
// @Summary      Delete an invoice
// @Tags         invoices
// @Security     BearerAuth
// @Param        id   path string true "Invoice UUID"
// @Success      204
// @Failure      403  {object} apierror.APIError
// @Router       /v1/invoices/{id}/ [delete]
func (h *InvoicesHandler) Delete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Receipt godoc
// @Summary      Download the PDF receipt
// @Tags         invoices
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path string true "Invoice UUID"
// @Success      200
// @Failure      404  {object} apierror.APIError
// @Router       /v1/invoices/{id}/receipt [get]
func (h *InvoicesHandler) Receipt(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	inv, err := h.svc.Receipt(c.Request.Context(), actor, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := infra.WriteReceiptPDF(&buf, inv, h.storeName); err != nil {
		writeServiceError(c, fmt.Errorf("render receipt %s: %w", inv.InvoiceNumber, err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, infra.ReceiptFileName(inv)))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
