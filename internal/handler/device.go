package handler

import (
	"FireBox/internal/dto"
	"FireBox/internal/service"
	"FireBox/utils"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterDevice enrolls a sync client and returns its device ID.
func RegisterDevice(c *gin.Context) {
	var req dto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	device, err := service.RegisterDevice(req.DeviceID, req.Name, req.Secret)
	if err != nil {
		if errors.Is(err, service.ErrDeviceExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		utils.Fail(c, err)
		return
	}
	token, err := utils.GenerateToken(device.DeviceID, device.Name)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, dto.TokenResponse{
		DeviceID: device.DeviceID,
		Token:    token,
	})
}

// LoginDevice authenticates a device and returns a bearer token.
func LoginDevice(c *gin.Context) {
	var req dto.LoginDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	device, err := service.AuthenticateDevice(req.DeviceID, req.Secret)
	if err != nil {
		if errors.Is(err, service.ErrDeviceAuth) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		utils.Fail(c, err)
		return
	}
	token, err := utils.GenerateToken(device.DeviceID, device.Name)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, dto.TokenResponse{
		DeviceID: device.DeviceID,
		Token:    token,
	})
}
