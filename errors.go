package airmon

import "errors"

var (
	ErrTransport            = errors.New("bus transaction failed")
	ErrChecksum             = errors.New("checksum mismatch")
	ErrSensorBusy           = errors.New("sensor busy")
	ErrSensorUncalibrated   = errors.New("sensor not calibrated")
	ErrSensorFirmwareFault  = errors.New("sensor firmware fault")
	ErrSensorDataStale      = errors.New("sensor has no new data")
	ErrSensorRangeViolation = errors.New("value out of sensor range")
)
