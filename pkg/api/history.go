package api

import (
	"time"

	"github.com/gofiber/fiber"
)

const defaultHistoryWindow = 24 * time.Hour

func parseRange(ctx *fiber.Ctx, now time.Time) (time.Time, time.Time, error) {
	end := now
	if raw := ctx.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}

	start := end.Add(-defaultHistoryWindow)
	if raw := ctx.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	return start, end, nil
}

func (as *ApiServer) getConfigHistory(ctx *fiber.Ctx) {
	deviceID, _ := ctx.Locals(localDeviceID).(string)

	start, end, err := parseRange(ctx, time.Now())
	if err != nil {
		fail(ctx, fiber.StatusBadRequest, "from and to must be RFC3339 timestamps")
		return
	}

	entries, err := as.history.InRange(ctx.Context(), deviceID, start, end)
	if err != nil {
		as.logger.Errorf("config history for %s: %v", deviceID, err)
		fail(ctx, fiber.StatusInternalServerError, "could not load config history")
		return
	}

	ctx.JSON(fiber.Map{
		"deviceId": deviceID,
		"entries":  entries,
	})
}
