package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config collects every tunable of the charging backend. Pricing and
// reservation constants live here so call sites stop duplicating them.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		TTL      int    `yaml:"ttlSeconds" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret" env:"AUTH_JWT_SECRET"`
	} `yaml:"auth"`
	Billing struct {
		// TariffPerKWh is the price of one kWh in currency units.
		TariffPerKWh float64 `yaml:"tariffPerKwh" env:"BILLING_TARIFF_PER_KWH"`
		// SettleIntervalSeconds drives the settlement worker loop.
		SettleIntervalSeconds int `yaml:"settleIntervalSeconds" env:"BILLING_SETTLE_INTERVAL"`
	} `yaml:"billing"`
	Reservations struct {
		GraceMinutes         int `yaml:"graceMinutes" env:"RESERVATIONS_GRACE_MINUTES"`
		SweepIntervalSeconds int `yaml:"sweepIntervalSeconds" env:"RESERVATIONS_SWEEP_INTERVAL"`
		LookaheadHours       int `yaml:"lookaheadHours" env:"RESERVATIONS_LOOKAHEAD_HOURS"`
		MaxChargeMinutes     int `yaml:"maxChargeMinutes" env:"RESERVATIONS_MAX_CHARGE_MINUTES"`
	} `yaml:"reservations"`
	ChargePoint struct {
		HeartbeatSeconds      int `yaml:"heartbeatSeconds" env:"CHARGEPOINT_HEARTBEAT_SECONDS"`
		CallTimeoutSeconds    int `yaml:"callTimeoutSeconds" env:"CHARGEPOINT_CALL_TIMEOUT"`
		OfflineTimeoutSeconds int `yaml:"offlineTimeoutSeconds" env:"CHARGEPOINT_OFFLINE_TIMEOUT"`
		PingSeconds           int `yaml:"pingSeconds" env:"CHARGEPOINT_PING_SECONDS"`
		WriteTimeoutSeconds   int `yaml:"writeTimeoutSeconds" env:"CHARGEPOINT_WRITE_TIMEOUT"`
	} `yaml:"chargePoint"`
	Vehicle struct {
		// BatteryCapacityKWh is the assumed pack size used for SOC estimates.
		BatteryCapacityKWh float64 `yaml:"batteryCapacityKwh" env:"VEHICLE_BATTERY_CAPACITY_KWH"`
	} `yaml:"vehicle"`
}

// Load reads configuration and applies defaults for everything optional.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "5000"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.TTL = 86400
	cfg.Billing.TariffPerKWh = 100
	cfg.Billing.SettleIntervalSeconds = 30
	cfg.Reservations.GraceMinutes = 5
	cfg.Reservations.SweepIntervalSeconds = 60
	cfg.Reservations.LookaheadHours = 6
	cfg.Reservations.MaxChargeMinutes = 360
	cfg.ChargePoint.HeartbeatSeconds = 300
	cfg.ChargePoint.CallTimeoutSeconds = 15
	cfg.ChargePoint.OfflineTimeoutSeconds = 300
	cfg.ChargePoint.PingSeconds = 30
	cfg.ChargePoint.WriteTimeoutSeconds = 10
	cfg.Vehicle.BatteryCapacityKWh = 100

	if err := load(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: jwt secret required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style listen address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "5000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// CacheTTL returns the redis TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// GracePeriod is the no-show buffer after a reservation's arrival time.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Reservations.GraceMinutes) * time.Minute
}

// SweepInterval is the reservation expiry sweep cadence.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Reservations.SweepIntervalSeconds) * time.Second
}

// Lookahead is the capacity projection window.
func (c *Config) Lookahead() time.Duration {
	return time.Duration(c.Reservations.LookaheadHours) * time.Hour
}

// SettleInterval is the settlement worker cadence.
func (c *Config) SettleInterval() time.Duration {
	return time.Duration(c.Billing.SettleIntervalSeconds) * time.Second
}

// CallTimeout bounds how long an outbound charge-point call may stay pending.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.ChargePoint.CallTimeoutSeconds) * time.Second
}

// OfflineTimeout is how long a charge point may stay disconnected before its
// connectors are taken out of service.
func (c *Config) OfflineTimeout() time.Duration {
	return time.Duration(c.ChargePoint.OfflineTimeoutSeconds) * time.Second
}

// PingInterval is the keepalive cadence on charge-point links.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.ChargePoint.PingSeconds) * time.Second
}

// WriteTimeout bounds a single websocket write.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.ChargePoint.WriteTimeoutSeconds) * time.Second
}
