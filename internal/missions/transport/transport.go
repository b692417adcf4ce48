// Package transport defines request and response shapes for mission routes.
package transport

// CreateMissionRequest creates a new transfer mission.
type CreateMissionRequest struct {
	Reference       string `json:"reference" validate:"required,max=64"`
	VehicleBrand    string `json:"vehicleBrand" validate:"required,max=100"`
	VehicleModel    string `json:"vehicleModel" validate:"required,max=100"`
	VehiclePlate    string `json:"vehiclePlate" validate:"required,max=20"`
	VehicleVIN      string `json:"vehicleVin" validate:"omitempty,len=17"`
	VehicleYear     *int   `json:"vehicleYear" validate:"omitempty,min=1950,max=2100"`
	VehicleColor    string `json:"vehicleColor" validate:"omitempty,max=50"`
	ClientName      string `json:"clientName" validate:"required,max=200"`
	ClientEmail     string `json:"clientEmail" validate:"omitempty,email"`
	PickupAddress   string `json:"pickupAddress" validate:"omitempty,max=500"`
	DeliveryAddress string `json:"deliveryAddress" validate:"omitempty,max=500"`
}
