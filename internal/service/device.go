package service

import (
	"FireBox/internal/repo"
	"FireBox/model"
	"FireBox/utils"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrDeviceExists = errors.New("device already registered")
var ErrDeviceAuth = errors.New("device authentication failed")

// RegisterDevice creates a device record with a hashed secret. The
// device may supply its own ID (so it survives reinstalls); otherwise
// one is issued.
func RegisterDevice(deviceID, name, secret string) (*model.Device, error) {
	if deviceID == "" {
		deviceID = utils.GetToken()
	}
	var existing model.Device
	err := repo.Db.Where("device_id = ?", deviceID).First(&existing).Error
	if err == nil {
		return nil, ErrDeviceExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	device := &model.Device{
		DeviceID:   deviceID,
		Name:       name,
		SecretHash: utils.GetPwd(secret),
		IsActive:   true,
	}
	if err := repo.Db.Create(device).Error; err != nil {
		return nil, err
	}
	return device, nil
}

// AuthenticateDevice checks a device secret and stamps last_seen_at.
func AuthenticateDevice(deviceID, secret string) (*model.Device, error) {
	var device model.Device
	if err := repo.Db.Where("device_id = ?", deviceID).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceAuth
		}
		return nil, err
	}
	if !device.IsActive || !utils.CheckPwd(secret, device.SecretHash) {
		return nil, ErrDeviceAuth
	}
	now := time.Now()
	_ = repo.Db.Model(&model.Device{}).
		Where("id = ?", device.ID).
		Update("last_seen_at", now).Error
	device.LastSeenAt = &now
	return &device, nil
}
