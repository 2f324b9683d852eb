package protocol

// Actions handled by the backend.
const (
	ActionBootNotification   = "BootNotification"
	ActionHeartbeat          = "Heartbeat"
	ActionStatusNotification = "StatusNotification"
	ActionStartTransaction   = "StartTransaction"
	ActionStopTransaction    = "StopTransaction"
	ActionMeterValues        = "MeterValues"
)

// Actions pushed to charge points.
const (
	ActionRemoteStartTransaction = "RemoteStartTransaction"
	ActionRemoteStopTransaction  = "RemoteStopTransaction"
)

// Registration and idTag status values.
const (
	StatusAccepted = "Accepted"
	StatusRejected = "Rejected"
)

// CALLERROR codes.
const (
	ErrorCodeInternal       = "InternalError"
	ErrorCodeInvalidStatus  = "InvalidStatus"
	ErrorCodeNotImplemented = "NotImplemented"
)
