package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/dto"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/service"
	"github.com/prohmpiriya/class-checkout/pkg/response"
	"github.com/prohmpiriya/class-checkout/pkg/telemetry"
)

// CatalogHandler serves the class group listing
type CatalogHandler struct {
	catalog service.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListGroups handles GET /class-groups?start=&end=
func (h *CatalogHandler) ListGroups(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.catalog.list_groups")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := actingUser(c)
	if !ok {
		return
	}

	var query dto.ListGroupsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		span.SetStatus(codes.Error, "invalid query")
		bindError(c, err)
		return
	}

	groups, err := h.catalog.ListGroups(ctx, userID, &query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("group_count", len(groups)))
	response.SuccessWithMeta(c, groups, gin.H{"count": len(groups)})
}
