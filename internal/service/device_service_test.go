package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/service"
	"github.com/dom/tenant-portal/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceService_RegisterOrTouch(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	first, err := services.Device.RegisterOrTouch(ctx, service.RegisterDeviceInput{
		UID:        "device-1",
		Name:       "Lobby TV",
		DeviceInfo: json.RawMessage(`{"os":"tizen","version":"6.5"}`),
	})
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.Equal(t, "Lobby TV", first.Name)

	time.Sleep(10 * time.Millisecond)

	second, err := services.Device.RegisterOrTouch(ctx, service.RegisterDeviceInput{
		UID:        "device-1",
		DeviceInfo: json.RawMessage(`{"os":"tizen","version":"7.0"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "re-registration must update the same row")
	assert.True(t, second.LastSeen.After(first.LastSeen))
	assert.Equal(t, "Lobby TV", second.Name, "an empty name keeps the stored one")
	assert.JSONEq(t, `{"os":"tizen","version":"7.0"}`, string(second.DeviceInfo))

	var count int64
	require.NoError(t, testDB.DB.Model(&domain.Device{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDeviceService_RegisterOrTouch_Validation(t *testing.T) {
	services, _, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input service.RegisterDeviceInput
	}{
		{name: "empty uid", input: service.RegisterDeviceInput{UID: "   "}},
		{name: "malformed info", input: service.RegisterDeviceInput{UID: "d", DeviceInfo: json.RawMessage(`{nope`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := services.Device.RegisterOrTouch(ctx, tt.input)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestDeviceService_RegisterOrTouch_Concurrent(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = services.Device.RegisterOrTouch(ctx, service.RegisterDeviceInput{
				UID:        "shared-device",
				DeviceInfo: json.RawMessage(fmt.Sprintf(`{"call":%d}`, i)),
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	var count int64
	require.NoError(t, testDB.DB.Model(&domain.Device{}).Where("uid = ?", "shared-device").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDeviceService_Deactivate(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	admin, _ := testutil.NewUserBuilder().SuperAdmin().Build(t, testDB.DB)
	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	device, err := services.Device.RegisterOrTouch(ctx, service.RegisterDeviceInput{UID: "kiosk-7"})
	require.NoError(t, err)

	assert.ErrorIs(t, services.Device.Deactivate(ctx, user, device.ID), domain.ErrForbidden)
	assert.ErrorIs(t, services.Device.Deactivate(ctx, admin, uuid.New()), domain.ErrNotFound)
	require.NoError(t, services.Device.Deactivate(ctx, admin, device.ID))

	touched, err := services.Device.RegisterOrTouch(ctx, service.RegisterDeviceInput{UID: "kiosk-7"})
	require.NoError(t, err)
	assert.False(t, touched.IsActive, "re-registration must not reactivate a device")

	active, err := services.Device.List(ctx, admin, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := services.Device.List(ctx, admin, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = services.Device.List(ctx, user, false)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
