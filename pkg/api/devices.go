package api

import (
	"errors"

	"github.com/gofiber/fiber"

	"com.aviebrantz.feedhub/pkg/core/store/devices"
	"com.aviebrantz.feedhub/pkg/devicecfg"
)

const (
	localDeviceID = "deviceID"
	localConfig   = "config"
)

func deviceIDFrom(ctx *fiber.Ctx) string {
	if id := ctx.Params("deviceId"); id != "" {
		return id
	}
	if id := ctx.Get("x-device-id"); id != "" {
		return id
	}
	return ctx.Query("deviceId")
}

func fail(ctx *fiber.Ctx, status int, msg string) {
	ctx.Status(status)
	ctx.JSON(fiber.Map{"error": msg})
}

func (as *ApiServer) requireRegistered(ctx *fiber.Ctx) {
	deviceID := deviceIDFrom(ctx)
	if deviceID == "" {
		fail(ctx, fiber.StatusBadRequest, "device id missing, send it as path parameter, query parameter or x-device-id header")
		return
	}

	registered, err := as.feeds.IsRegistered(ctx.Context(), deviceID)
	if err != nil {
		as.logger.Errorf("registration check for %s: %v", deviceID, err)
		fail(ctx, fiber.StatusInternalServerError, "could not check device registration")
		return
	}
	if !registered {
		fail(ctx, fiber.StatusForbidden, "device "+deviceID+" is not registered")
		return
	}

	ctx.Locals(localDeviceID, deviceID)
	ctx.Next()
}

func (as *ApiServer) requireConfig(ctx *fiber.Ctx) {
	deviceID := deviceIDFrom(ctx)
	if deviceID == "" {
		fail(ctx, fiber.StatusBadRequest, "device id missing")
		return
	}

	cfg, err := as.feeds.LoadConfig(ctx.Context(), deviceID)
	if errors.Is(err, devicecfg.ErrConfigNotFound) {
		fail(ctx, fiber.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		fail(ctx, fiber.StatusInternalServerError, "could not load device configuration")
		return
	}

	ctx.Locals(localDeviceID, deviceID)
	ctx.Locals(localConfig, cfg)
	ctx.Next()
}

func configOf(ctx *fiber.Ctx) *devices.DeviceConfig {
	cfg, _ := ctx.Locals(localConfig).(*devices.DeviceConfig)
	return cfg
}

func (as *ApiServer) getConfig(ctx *fiber.Ctx) {
	ctx.JSON(configOf(ctx).DeviceConfiguration)
}

func (as *ApiServer) patchConfig(ctx *fiber.Ctx) {
	deviceID, _ := ctx.Locals(localDeviceID).(string)

	updates := make(map[string]interface{})
	if err := ctx.BodyParser(&updates); err != nil || len(updates) == 0 {
		fail(ctx, fiber.StatusBadRequest, "invalid configuration update")
		return
	}

	if err := as.feeds.UpdateConfig(ctx.Context(), deviceID, updates); err != nil {
		as.logger.Errorf("update config for %s: %v", deviceID, err)
		fail(ctx, fiber.StatusInternalServerError, "could not update configuration")
		return
	}

	cfg, err := as.feeds.LoadConfig(ctx.Context(), deviceID)
	if err != nil {
		fail(ctx, fiber.StatusInternalServerError, err.Error())
		return
	}
	ctx.JSON(cfg)
}

func (as *ApiServer) registerDevice(ctx *fiber.Ctx) {
	deviceID := ctx.Params("deviceId")

	registered, err := as.feeds.IsRegistered(ctx.Context(), deviceID)
	if err != nil {
		fail(ctx, fiber.StatusInternalServerError, err.Error())
		return
	}
	if registered {
		fail(ctx, fiber.StatusConflict, "device "+deviceID+" already registered")
		return
	}

	cfg, err := as.feeds.Register(ctx.Context(), deviceID)
	if err != nil {
		fail(ctx, fiber.StatusBadRequest, err.Error())
		return
	}

	ctx.Status(fiber.StatusCreated)
	ctx.JSON(cfg)
}

func (as *ApiServer) listDevices(ctx *fiber.Ctx) {
	ids, err := as.feeds.ListDevices(ctx.Context())
	if err != nil {
		as.logger.Errorf("list devices: %v", err)
		fail(ctx, fiber.StatusInternalServerError, "could not list devices")
		return
	}
	ctx.JSON(fiber.Map{"devices": ids})
}

func (as *ApiServer) getCacheHealth(ctx *fiber.Ctx) {
	ctx.JSON(fiber.Map{
		"cache": fiber.Map{
			"healthy": as.feeds.CacheHealthy(ctx.Context()),
		},
	})
}
