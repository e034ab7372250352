package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dom/tenant-portal/internal/api/respond"
	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/service"
)

const deviceUIDHeader = "X-Device-UID"

type DeviceHandler struct {
	deviceService *service.DeviceService
}

func NewDeviceHandler(deviceService *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

type RegisterDeviceRequest struct {
	UID        string          `json:"uid"`
	Name       string          `json:"name"`
	DeviceInfo json.RawMessage `json:"deviceInfo"`
}

// Register records or refreshes a device. The uid may come from the body or
// the X-Device-UID header; the body wins.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(w, r, fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput))
		return
	}
	if req.UID == "" {
		req.UID = r.Header.Get(deviceUIDHeader)
	}

	device, err := h.deviceService.RegisterOrTouch(r.Context(), service.RegisterDeviceInput{
		UID:        req.UID,
		Name:       req.Name,
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, device)
}

// List serves the admin listing; ?active=true limits it to active devices.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := userOrError(w, r)
	if !ok {
		return
	}

	devices, err := h.deviceService.List(r.Context(), user, r.URL.Query().Get("active") == "true")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, devices)
}

func (h *DeviceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	user, ok := userOrError(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.deviceService.Deactivate(r.Context(), user, id); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w, r)
}
