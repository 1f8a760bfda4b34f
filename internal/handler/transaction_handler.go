package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/DeadSloth/mapon-backend-assignment/internal/domain"
	"github.com/DeadSloth/mapon-backend-assignment/internal/service"
	"github.com/DeadSloth/mapon-backend-assignment/pkg/logger"
)

const maxListLimit = 1000

type TransactionHandler struct {
	repo         domain.TransactionRepository
	importer     *service.ImportService
	provider     service.SampleProvider
	defaultLimit int
	logger       *logger.Logger
}

func NewTransactionHandler(
	repo domain.TransactionRepository,
	importer *service.ImportService,
	provider service.SampleProvider,
	defaultLimit int,
	log *logger.Logger,
) *TransactionHandler {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &TransactionHandler{
		repo:         repo,
		importer:     importer,
		provider:     provider,
		defaultLimit: defaultLimit,
		logger:       log,
	}
}

func (h *TransactionHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 {
		limit = h.defaultLimit
	}
	if limit > maxListLimit {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "limit cannot exceed 1000",
		})
	}

	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	filter := domain.TransactionFilter{
		VehicleNumber: c.QueryParam("vehicle_number"),
		Limit:         limit,
		Offset:        offset,
	}

	if statusParam := c.QueryParam("status"); statusParam != "" {
		status := domain.EnrichmentStatus(statusParam)
		switch status {
		case domain.EnrichmentStatusPending, domain.EnrichmentStatusCompleted,
			domain.EnrichmentStatusFailed, domain.EnrichmentStatusNotFound:
			filter.Status = status
		default:
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "status must be one of pending, completed, failed, not_found",
			})
		}
	}

	items, err := h.repo.GetAll(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "Failed to list transactions",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
	}

	total, err := h.repo.Count(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "Failed to count transactions",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

type importRequest struct {
	CSVData string `json:"csv_data"`
}

func (h *TransactionHandler) Import(c echo.Context) error {
	ctx := c.Request().Context()

	var req importRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if req.CSVData == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "csv_data is required",
		})
	}

	h.logger.Info(ctx, "Handling CSV import request",
		"bytes", len(req.CSVData),
	)

	result, err := h.importer.ImportCSV(ctx, req.CSVData)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyCSV) || errors.Is(err, domain.ErrInvalidCSVFormat) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}

		h.logger.Error(ctx, "CSV import failed",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "import failed",
		})
	}

	return c.JSON(http.StatusOK, result)
}

type enrichRequest struct {
	Limit int `json:"limit"`
}

// EnrichAll runs the enrichment engine over the newest transactions up to
// the requested limit. Already-completed rows count as skipped. A fresh
// engine per request keeps the returned counters scoped to this call.
func (h *TransactionHandler) EnrichAll(c echo.Context) error {
	ctx := c.Request().Context()

	req := enrichRequest{Limit: h.defaultLimit}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if req.Limit <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "limit must be a positive integer",
		})
	}

	txs, err := h.repo.GetAll(ctx, domain.TransactionFilter{Limit: req.Limit})
	if err != nil {
		h.logger.Error(ctx, "Failed to load transactions for enrichment",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to load transactions",
		})
	}

	enricher := service.NewEnrichmentService(h.provider, h.repo, h.logger)

	summary, err := enricher.EnrichBatch(ctx, txs)
	if err != nil {
		h.logger.Error(ctx, "Enrichment run aborted",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "enrichment run aborted",
		})
	}

	return c.JSON(http.StatusOK, summary)
}

func (h *TransactionHandler) EnrichOne(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "id must be a positive integer",
		})
	}

	tx, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
		}

		h.logger.Error(ctx, "Failed to load transaction",
			"transaction_id", id,
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to load transaction",
		})
	}

	enricher := service.NewEnrichmentService(h.provider, h.repo, h.logger)

	tx, err = enricher.EnrichOne(ctx, tx)
	if err != nil {
		h.logger.Error(ctx, "Enrichment aborted",
			"transaction_id", id,
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "enrichment aborted",
		})
	}

	resp := map[string]interface{}{
		"item": tx,
	}
	if msg := enricher.LatestMessage(); msg != "" {
		resp["message"] = msg
	}

	return c.JSON(http.StatusOK, resp)
}
