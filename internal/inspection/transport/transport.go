// Package transport defines request and response shapes for inspection routes.
package transport

import "github.com/google/uuid"

// StartSessionRequest starts (or resumes) an inspection for a mission.
type StartSessionRequest struct {
	MissionID uuid.UUID `json:"missionId" validate:"required"`
	Kind      string    `json:"kind" validate:"required,oneof=departure arrival"`
	Latitude  *float64  `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude *float64  `json:"longitude" validate:"omitempty,min=-180,max=180"`
}

// UpdateMetadataRequest records condition, fuel, odometer and notes.
// Absent fields are left unchanged.
type UpdateMetadataRequest struct {
	OverallCondition *string `json:"overallCondition" validate:"omitempty,oneof=excellent good fair poor"`
	FuelLevel        *int    `json:"fuelLevel" validate:"omitempty,min=0,max=100"`
	OdometerKm       *int    `json:"odometerKm" validate:"omitempty,min=0"`
	Notes            *string `json:"notes" validate:"omitempty,max=4000"`
}

// NavigateRequest moves the step cursor.
type NavigateRequest struct {
	Action string `json:"action" validate:"required,oneof=advance retreat jump"`
	Index  int    `json:"index" validate:"min=0"`
}

// EditDescriptionRequest replaces a step's description and approves it.
type EditDescriptionRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// SignatureRequest records one signature. The image is base64-encoded PNG
// stroke data.
type SignatureRequest struct {
	Role       string `json:"role" validate:"required,oneof=operator counterparty"`
	ImageData  string `json:"imageData" validate:"required"`
	SignerName string `json:"signerName" validate:"omitempty,max=200"`
}
