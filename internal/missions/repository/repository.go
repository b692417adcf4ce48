// Package repository provides data access for missions.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a mission does not exist.
var ErrNotFound = errors.New("mission not found")

// Mission is a planned vehicle transfer. It is the subject every inspection
// session attaches to.
type Mission struct {
	ID              uuid.UUID `json:"id"`
	Reference       string    `json:"reference"`
	VehicleBrand    string    `json:"vehicleBrand"`
	VehicleModel    string    `json:"vehicleModel"`
	VehiclePlate    string    `json:"vehiclePlate"`
	VehicleVIN      string    `json:"vehicleVin,omitempty"`
	VehicleYear     *int      `json:"vehicleYear,omitempty"`
	VehicleColor    string    `json:"vehicleColor,omitempty"`
	ClientName      string    `json:"clientName"`
	ClientEmail     string    `json:"clientEmail,omitempty"`
	PickupAddress   string    `json:"pickupAddress,omitempty"`
	DeliveryAddress string    `json:"deliveryAddress,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const missionColumns = `id, reference, vehicle_brand, vehicle_model, vehicle_plate,
	vehicle_vin, vehicle_year, vehicle_color, client_name, client_email,
	pickup_address, delivery_address, created_at, updated_at`

func scanMission(row pgx.Row) (*Mission, error) {
	var m Mission
	err := row.Scan(
		&m.ID, &m.Reference, &m.VehicleBrand, &m.VehicleModel, &m.VehiclePlate,
		&m.VehicleVIN, &m.VehicleYear, &m.VehicleColor, &m.ClientName, &m.ClientEmail,
		&m.PickupAddress, &m.DeliveryAddress, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan mission: %w", err)
	}
	return &m, nil
}

func (r *Repository) Create(ctx context.Context, m *Mission) (*Mission, error) {
	query := fmt.Sprintf(`
		INSERT INTO missions (reference, vehicle_brand, vehicle_model, vehicle_plate,
			vehicle_vin, vehicle_year, vehicle_color, client_name, client_email,
			pickup_address, delivery_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING %s`, missionColumns)

	row := r.pool.QueryRow(ctx, query,
		m.Reference, m.VehicleBrand, m.VehicleModel, m.VehiclePlate,
		m.VehicleVIN, m.VehicleYear, m.VehicleColor, m.ClientName, m.ClientEmail,
		m.PickupAddress, m.DeliveryAddress,
	)
	return scanMission(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Mission, error) {
	query := fmt.Sprintf(`SELECT %s FROM missions WHERE id = $1`, missionColumns)
	return scanMission(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]*Mission, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM missions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, missionColumns)

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	missions := make([]*Mission, 0)
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}
