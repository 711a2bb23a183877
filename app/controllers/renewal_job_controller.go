package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/renewalworks/billingd/internal/pkg/scheduler"
)

// RunLauncher starts a batch run, optionally with a forced fresh identity.
type RunLauncher interface {
	Launch(ctx context.Context, forced bool) (*scheduler.RunResult, error)
}

// RenewalJobController exposes the manual trigger for the scan+relay run.
type RenewalJobController struct {
	runner RunLauncher
}

// NewRenewalJobController creates the trigger controller.
func NewRenewalJobController(runner RunLauncher) *RenewalJobController {
	return &RenewalJobController{runner: runner}
}

// HandleTrigger runs the renewal job immediately. With ?force=true the run
// gets a distinct identity so a same-day re-run is not blocked by the
// single-flight lock.
func (rc *RenewalJobController) HandleTrigger(c *fiber.Ctx) error {
	forced := c.QueryBool("force")

	result, err := rc.runner.Launch(c.UserContext(), forced)
	if err != nil {
		status := fiber.StatusInternalServerError
		if result == nil {
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(status).JSON(fiber.Map{
			"job":        result.Job,
			"run_id":     result.RunID,
			"status":     result.Status,
			"parameters": runParameters(result, forced),
			"error":      err.Error(),
		})
	}

	httpStatus := fiber.StatusOK
	if result.Status == scheduler.RunStatusSkipped {
		httpStatus = fiber.StatusConflict
	}
	return c.Status(httpStatus).JSON(fiber.Map{
		"job":        result.Job,
		"run_id":     result.RunID,
		"status":     result.Status,
		"parameters": runParameters(result, forced),
		"inserted":   result.Inserted,
		"published":  result.Published,
	})
}

func runParameters(result *scheduler.RunResult, forced bool) fiber.Map {
	return fiber.Map{
		"schedule_date": result.ScheduleDate,
		"force":         forced,
	}
}
