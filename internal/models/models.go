package models

import "time"

// Connector status values. Stored lowercase; StatusNotification input is
// normalized before it reaches the registry.
const (
	ConnectorAvailable    = "available"
	ConnectorInUse        = "in use"
	ConnectorOutOfService = "out of service"
)

// Session status values.
const (
	SessionActive    = "in use"
	SessionCompleted = "completed"
)

// Settlement status values. Processing marks a row claimed by a worker run;
// a claimed row is never listed as pending again, so a debit is applied at
// most once even when the terminal status write fails.
const (
	SettlementPending      = "pending"
	SettlementProcessing   = "processing"
	SettlementSettled      = "settled"
	SettlementInsufficient = "insufficient"
)

// Connector is a single physical charging port.
type Connector struct {
	ID            int64     `json:"id"`
	StationID     string    `json:"station_id"`
	ConnectorType string    `json:"connector_type"`
	PowerKW       float64   `json:"power"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ConnectorDetail joins a connector with its station and location for the
// start-charging screen.
type ConnectorDetail struct {
	Connector
	StationNumber int    `json:"station_number"`
	LocationName  string `json:"location_name"`
}

// ChargingSession is one charging transaction on a connector. Terminal once
// EndTime is set.
type ChargingSession struct {
	ID            int64      `json:"id"`
	ConnectorID   int64      `json:"connector_id"`
	UserID        int64      `json:"user_id"`
	TransactionID string     `json:"transaction_id"`
	Status        string     `json:"status"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	EnergyKWh     float64    `json:"energy_kwh"`
	Cost          int64      `json:"cost"`
}

// ChargeHistoryEntry mirrors a completed session, append-only.
type ChargeHistoryEntry struct {
	ID            int64     `json:"id"`
	SessionID     int64     `json:"session_id"`
	ConnectorID   int64     `json:"connector_id"`
	UserID        int64     `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	EnergyKWh     float64   `json:"energy_kwh"`
	Cost          int64     `json:"cost"`
	CreatedAt     time.Time `json:"created_at"`
}

// Reservation holds a future time slot on a connector. ArrivalTime is a
// time-of-day on Date; Duration is in minutes.
type Reservation struct {
	ID              int64     `json:"id"`
	ConnectorID     int64     `json:"connector_id"`
	UserID          int64     `json:"user_id"`
	Date            string    `json:"reservation_date"` // YYYY-MM-DD
	ArrivalTime     string    `json:"arrival_time"`     // HH:MM
	DurationMinutes int       `json:"duration"`
	CreatedAt       time.Time `json:"created_at"`
}

// UserBalance is the prepaid balance of one user.
type UserBalance struct {
	UserID    int64     `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Settlement records the intent to debit a user for a completed session. It is
// written in the same transaction that closes the session and applied by the
// settlement worker.
type Settlement struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChargePoint is a physical unit registered via BootNotification.
type ChargePoint struct {
	ID              string    `json:"id"`
	Vendor          string    `json:"vendor"`
	Model           string    `json:"model"`
	FirmwareVersion string    `json:"firmware_version"`
	LastSeen        time.Time `json:"last_seen"`
}

// Station groups connectors at a location.
type Station struct {
	ID            string      `json:"id"`
	LocationID    int64       `json:"location_id"`
	StationNumber int         `json:"station_number"`
	Status        string      `json:"status"`
	Connectors    []Connector `json:"connectors"`
}

// Location is a charging site with nested stations.
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Details   string    `json:"details"`
	Capacity  int       `json:"capacity"`
	Stations  []Station `json:"stations"`
}
