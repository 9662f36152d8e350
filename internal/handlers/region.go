package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

type RegionCatalog interface {
	Get(id string) (interface{}, bool)
}

type RegionHandler struct {
	catalog RegionCatalog
}

func NewRegionHandler(catalog RegionCatalog) *RegionHandler {
	return &RegionHandler{catalog: catalog}
}

// Get returns the map record of one region.
func (h *RegionHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	log.Printf("Region: lookup %s", id)

	region, ok := h.catalog.Get(id)
	if !ok {
		return errorResponse(c, fiber.StatusNotFound, CodeNotFound, "Region '"+id+"' not found")
	}
	return c.JSON(region)
}
