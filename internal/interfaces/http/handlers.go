package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/procure2pay/server/internal/application/service"
	"github.com/procure2pay/server/internal/domain/entity"
	"github.com/procure2pay/server/internal/extraction"
)

// maxUploadBytes caps receipt and proforma uploads.
const maxUploadBytes = 10 << 20

// Handlers contains all HTTP request handlers
type Handlers struct {
	requestService *service.RequestService
	receiptService *service.ReceiptService
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	requestService *service.RequestService,
	receiptService *service.ReceiptService,
	logger Logger,
) *Handlers {
	return &Handlers{
		requestService: requestService,
		receiptService: receiptService,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateRequestBody is the JSON body for POST /api/requests.
type CreateRequestBody struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Currency    string                  `json:"currency"`
	LineItems   []service.LineItemInput `json:"line_items"`
}

// DecisionBody is the JSON body for approve/reject calls.
type DecisionBody struct {
	Level           int    `json:"level"`
	ExpectedVersion int64  `json:"expected_version"`
	Comment         string `json:"comment"`
}

// RequestResponse represents a purchase request in API responses
type RequestResponse struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Currency       string  `json:"currency"`
	AmountCents    int64   `json:"amount_cents"`
	Status         string  `json:"status"`
	CurrentLevel   int     `json:"current_level"`
	RequiredLevels int     `json:"required_levels"`
	Version        int64   `json:"version"`
	CreatedBy      string  `json:"created_by,omitempty"`
	ApprovedAt     *string `json:"approved_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// ListRequestsQuery represents query parameters for listing requests
type ListRequestsQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateRequest handles POST /api/requests. A multipart body may attach an
// optional proforma document alongside the JSON payload in the "request"
// field; a plain JSON body creates the request without one.
func (h *Handlers) CreateRequest(c *gin.Context) {
	input, ok := h.bindCreateRequest(c)
	if !ok {
		return
	}
	input.CreatedBy = c.GetHeader("X-Actor-ID")

	req, err := h.requestService.CreateRequest(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err, "failed to create request")
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toRequestResponse(req),
	})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	var q ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	// Set defaults
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	requests, err := h.requestService.ListRequests(c.Request.Context(), q.Status, q.Limit, q.Offset)
	if err != nil {
		h.respondError(c, err, "failed to list requests")
		return
	}

	responses := make([]RequestResponse, 0, len(requests))
	for _, req := range requests {
		responses = append(responses, toRequestResponse(req))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.requestService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "failed to get request")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toRequestResponse(req),
	})
}

// GetApprovals handles GET /api/requests/:id/approvals
func (h *Handlers) GetApprovals(c *gin.Context) {
	approvals, err := h.requestService.GetApprovals(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "failed to get approvals")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    approvals,
	})
}

// Approve handles PATCH /api/requests/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	h.decide(c, "APPROVE")
}

// Reject handles PATCH /api/requests/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	h.decide(c, "REJECT")
}

func (h *Handlers) decide(c *gin.Context, decision string) {
	var body DecisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	req, err := h.requestService.Decide(
		c.Request.Context(),
		c.Param("id"),
		body.Level,
		c.GetHeader("X-Actor-Role"),
		c.GetHeader("X-Actor-ID"),
		decision,
		body.Comment,
		body.ExpectedVersion,
	)
	if err != nil {
		h.respondError(c, err, "decision failed")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toRequestResponse(req),
	})
}

// SubmitReceipt handles POST /api/requests/:id/receipt
func (h *Handlers) SubmitReceipt(c *gin.Context) {
	data, mimeType, ok := h.readUpload(c, "receipt")
	if !ok {
		return
	}

	report, err := h.receiptService.SubmitReceipt(c.Request.Context(), c.Param("id"), data, mimeType)
	if err != nil {
		h.respondError(c, err, "receipt submission failed")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    report,
	})
}

// GetValidations handles GET /api/requests/:id/validations
func (h *Handlers) GetValidations(c *gin.Context) {
	reports, err := h.receiptService.GetReports(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "failed to get validation reports")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    reports,
	})
}

func (h *Handlers) bindCreateRequest(c *gin.Context) (service.CreateRequestInput, bool) {
	var input service.CreateRequestInput

	if c.ContentType() == "multipart/form-data" {
		var body CreateRequestBody
		if err := json.Unmarshal([]byte(c.PostForm("request")), &body); err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "invalid request payload",
			})
			return input, false
		}
		input = createInputFromBody(body)

		if file, err := c.FormFile("proforma"); err == nil {
			data, mimeType, ok := readFormFile(c, file)
			if !ok {
				return input, false
			}
			input.Proforma = data
			input.ProformaMime = mimeType
		}
		return input, true
	}

	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return input, false
	}
	return createInputFromBody(body), true
}

func (h *Handlers) readUpload(c *gin.Context, field string) ([]byte, string, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   field + " file is required",
		})
		return nil, "", false
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "file too large",
		})
		return nil, "", false
	}
	return readFormFile(c, file)
}

// respondError maps the service error taxonomy onto HTTP status codes.
func (h *Handlers) respondError(c *gin.Context, err error, logMsg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidState):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, extraction.ErrExtraction):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(logMsg, "error", err)
		c.JSON(status, Response{Success: false, Error: logMsg})
		return
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func createInputFromBody(body CreateRequestBody) service.CreateRequestInput {
	return service.CreateRequestInput{
		Title:       body.Title,
		Description: body.Description,
		Currency:    body.Currency,
		LineItems:   body.LineItems,
	}
}

func readFormFile(c *gin.Context, header *multipart.FileHeader) ([]byte, string, bool) {
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "failed to read uploaded file",
		})
		return nil, "", false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil || int64(len(data)) > maxUploadBytes {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "failed to read uploaded file",
		})
		return nil, "", false
	}
	return data, header.Header.Get("Content-Type"), true
}

// toRequestResponse converts domain entity to API response
func toRequestResponse(req *entity.PurchaseRequest) RequestResponse {
	resp := RequestResponse{
		ID:             req.ID,
		Title:          req.Title,
		Description:    req.Description,
		Currency:       req.Currency,
		AmountCents:    req.AmountCents,
		Status:         req.Status,
		CurrentLevel:   req.CurrentLevel,
		RequiredLevels: req.RequiredLevels,
		Version:        req.Version,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      req.UpdatedAt.Format(time.RFC3339),
	}

	if req.ApprovedAt != nil {
		approvedAt := req.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &approvedAt
	}

	return resp
}
