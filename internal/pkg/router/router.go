package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/renewalworks/billingd/app/controllers"
	"github.com/renewalworks/billingd/internal/pkg/constants"
	"github.com/renewalworks/billingd/internal/pkg/metrics/counter"
	"github.com/renewalworks/billingd/internal/pkg/middleware"
)

// SetupRoutes registers the operational API.
func SetupRoutes(app *fiber.App, jobs *controllers.RenewalJobController) {
	api := app.Group(constants.APIPrefix)

	api.Get(constants.HealthRoute, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	protected := api.Group("", middleware.APIKeyAuth())

	protected.Get(constants.StatsRoute, func(c *fiber.Ctx) error {
		stats, err := counter.Snapshot()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(stats)
	})

	// POST triggers a run, ?force=true permits same-day reprocessing.
	protected.Post(constants.RenewalJobRoute, jobs.HandleTrigger)
}
