package test

import (
	"FireBox/internal/service"
	"FireBox/utils"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDeviceRegisterAndLogin(t *testing.T) {
	cleanTables(t, "device")

	name := fmt.Sprintf("laptop_%d", time.Now().UnixNano())
	device, err := service.RegisterDevice("", name, "hunter2")
	if err != nil {
		t.Fatalf("RegisterDevice failed: %v", err)
	}
	if device.DeviceID == "" {
		t.Fatal("device must be issued an id")
	}
	if device.SecretHash == "hunter2" {
		t.Fatal("secret must not be stored in the clear")
	}

	got, err := service.AuthenticateDevice(device.DeviceID, "hunter2")
	if err != nil {
		t.Fatalf("AuthenticateDevice failed: %v", err)
	}
	if got.LastSeenAt == nil {
		t.Fatal("login must stamp last_seen_at")
	}

	if _, err := service.AuthenticateDevice(device.DeviceID, "wrong"); !errors.Is(err, service.ErrDeviceAuth) {
		t.Fatalf("wrong secret: expect auth error, got %v", err)
	}
	if _, err := service.AuthenticateDevice("no-such-device", "hunter2"); !errors.Is(err, service.ErrDeviceAuth) {
		t.Fatalf("unknown device: expect auth error, got %v", err)
	}
}

func TestDeviceRegisterDuplicateID(t *testing.T) {
	cleanTables(t, "device")

	device, err := service.RegisterDevice("", "first", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := service.RegisterDevice(device.DeviceID, "second", "s2"); !errors.Is(err, service.ErrDeviceExists) {
		t.Fatalf("expect duplicate-id error, got %v", err)
	}
}

func TestDeviceTokenRoundTrip(t *testing.T) {
	token, err := utils.GenerateToken("dev-1", "laptop")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := utils.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.DeviceID != "dev-1" || claims.DeviceName != "laptop" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := utils.VerifyToken(token + "tampered"); err == nil {
		t.Fatal("tampered token must not verify")
	}
}
