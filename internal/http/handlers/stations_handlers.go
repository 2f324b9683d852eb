package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
	"github.com/kazakhbala01/qazevAPP/internal/service"
)

// Catalog lists the location tree for the map screen.
type Catalog interface {
	Locations(ctx context.Context) ([]models.Location, error)
}

// ConnectorReader resolves single connectors with their station context.
type ConnectorReader interface {
	GetDetail(ctx context.Context, id int64) (*models.ConnectorDetail, error)
}

// CapacityProjector bounds an advisable charge ahead of reservations.
type CapacityProjector interface {
	Project(ctx context.Context, connectorID int64) (*service.CapacityProjection, error)
}

// StationsHandlers serves the catalog and connector endpoints.
type StationsHandlers struct {
	catalog    Catalog
	connectors ConnectorReader
	capacity   CapacityProjector
	logger     *zap.Logger
}

// NewStationsHandlers returns handler.
func NewStationsHandlers(catalog Catalog, connectors ConnectorReader, capacity CapacityProjector, logger *zap.Logger) *StationsHandlers {
	return &StationsHandlers{catalog: catalog, connectors: connectors, capacity: capacity, logger: logger}
}

// Locations handles GET /api/locations.
func (h *StationsHandlers) Locations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.catalog.Locations(r.Context())
	if err != nil {
		h.logger.Error("list locations failed", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

// ConnectorDetail handles GET /api/connectors/{id}.
func (h *StationsHandlers) ConnectorDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid connector id")
		return
	}

	detail, err := h.connectors.GetDetail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Capacity handles GET /api/connectors/{id}/capacity.
func (h *StationsHandlers) Capacity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid connector id")
		return
	}

	projection, err := h.capacity.Project(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}
