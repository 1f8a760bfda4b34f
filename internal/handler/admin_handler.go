package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/DeadSloth/mapon-backend-assignment/internal/domain"
	"github.com/DeadSloth/mapon-backend-assignment/pkg/logger"
)

// AdminHandler exposes maintenance operations. Development convenience;
// there is no auth layer in front of it.
type AdminHandler struct {
	repo   domain.TransactionRepository
	logger *logger.Logger
}

func NewAdminHandler(repo domain.TransactionRepository, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		repo:   repo,
		logger: log,
	}
}

// Clear removes every transaction. Vehicle mappings survive.
func (h *AdminHandler) Clear(c echo.Context) error {
	ctx := c.Request().Context()

	deleted, err := h.repo.DeleteAll(ctx)
	if err != nil {
		h.logger.Error(ctx, "Failed to clear transactions",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to clear transactions",
		})
	}

	h.logger.Info(ctx, "Cleared transactions",
		"deleted", deleted,
	)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	})
}
