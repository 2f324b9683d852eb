package protocol

import "time"

// BootNotificationRequest subset observed in the field.
type BootNotificationRequest struct {
	ChargePointVendor string `json:"chargePointVendor"`
	ChargePointModel  string `json:"chargePointModel"`
	FirmwareVersion   string `json:"firmwareVersion"`
}

// BootNotificationResponse advertises the heartbeat interval.
type BootNotificationResponse struct {
	CurrentTime time.Time `json:"currentTime"`
	Interval    int       `json:"interval"`
	Status      string    `json:"status"`
}

// HeartbeatResponse returns server time.
type HeartbeatResponse struct {
	CurrentTime time.Time `json:"currentTime"`
}

// StatusNotificationRequest reports a connector status change.
type StatusNotificationRequest struct {
	ConnectorID int64  `json:"connectorId"`
	Status      string `json:"status"`
	ErrorCode   string `json:"errorCode"`
}

// StatusNotificationResponse is an empty ack.
type StatusNotificationResponse struct{}

// StartTransactionRequest confirms a charging start on the charge point side.
type StartTransactionRequest struct {
	ConnectorID   int64     `json:"connectorId"`
	IdTag         string    `json:"idTag"`
	MeterStart    int64     `json:"meterStart"`
	Timestamp     time.Time `json:"timestamp"`
	TransactionID string    `json:"transactionId"`
}

// IdTagInfo carries the authorization verdict in transaction responses.
type IdTagInfo struct {
	Status string `json:"status"`
}

// StartTransactionResponse carries the transaction id the backend settled on.
type StartTransactionResponse struct {
	TransactionID string    `json:"transactionId"`
	IdTagInfo     IdTagInfo `json:"idTagInfo"`
}

// StopTransactionRequest confirms a charging stop. MeterStop is the final
// cumulative reading in kWh.
type StopTransactionRequest struct {
	TransactionID string    `json:"transactionId"`
	MeterStop     float64   `json:"meterStop"`
	Timestamp     time.Time `json:"timestamp"`
	Reason        string    `json:"reason"`
}

// StopTransactionResponse acks a stop.
type StopTransactionResponse struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}

// MeterValuesRequest carries a cumulative meter reading in kWh.
type MeterValuesRequest struct {
	ConnectorID int64   `json:"connectorId"`
	MeterValue  float64 `json:"meterValue"`
}

// MeterValuesResponse is an empty ack.
type MeterValuesResponse struct{}

// RemoteStartTransactionRequest is pushed to the owning charge point.
type RemoteStartTransactionRequest struct {
	ConnectorID   int64  `json:"connectorId"`
	IdTag         string `json:"idTag"`
	TransactionID string `json:"transactionId"`
}

// RemoteStopTransactionRequest is pushed to the owning charge point.
type RemoteStopTransactionRequest struct {
	TransactionID string `json:"transactionId"`
}

// RemoteOperationResponse is the charge point's confirmation payload.
type RemoteOperationResponse struct {
	Status string `json:"status"`
}
