package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lp-engine/internal/application/allocation"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Locator   *allocation.Locator
	Ledger    *allocation.Ledger
	Allocator *allocation.Allocator
	JWTSecret string
}

// Router registra las rutas de la API. Todas requieren Bearer Token; las escrituras además
// requieren rol admin o bodeguero.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	writer := RequireRole(RoleAdmin, RoleBodeguero)

	// Picking
	pickingHandler := NewPickingHandler(deps.Locator)
	pickingGroup := api.Group("/picking")
	pickingGroup.Get("/strategy", pickingHandler.Strategy)
	pickingGroup.Post("/violations/check", pickingHandler.CheckViolation)

	// License plates
	lpHandler := NewLicensePlateHandler(deps.Locator, deps.Ledger)
	lps := api.Group("/license-plates")
	lps.Get("/available", lpHandler.Available)
	lps.Get("/:id/available-qty", lpHandler.AvailableQty)

	// Allocations
	allocationHandler := NewAllocationHandler(deps.Allocator)
	api.Post("/allocations", writer, allocationHandler.Allocate)

	// Reservations (rutas fijas antes de /:id)
	resHandler := NewReservationHandler(deps.Ledger)
	reservations := api.Group("/reservations")
	reservations.Post("/", writer, resHandler.Create)
	reservations.Get("/", resHandler.List)
	reservations.Get("/coverage", resHandler.Coverage)
	reservations.Get("/pick-list", resHandler.PickList)
	reservations.Post("/release-all", writer, resHandler.ReleaseAll)
	reservations.Get("/:id", resHandler.GetByID)
	reservations.Put("/:id", writer, resHandler.Update)
	reservations.Post("/:id/release", writer, resHandler.Release)
	reservations.Post("/:id/consume", writer, resHandler.Consume)
}
