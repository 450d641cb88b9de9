package driver

import (
	"fmt"

	"github.com/mklimuk/airmon"
)

// Status is what a sensor reports about the block it just returned.
type Status int

const (
	StatusOK Status = iota
	StatusBusy
	StatusUncalibrated
	StatusFirmwareNotLoaded
	StatusNotInAppMode
	StatusError
	StatusNoNewData
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBusy:
		return "busy"
	case StatusUncalibrated:
		return "uncalibrated"
	case StatusFirmwareNotLoaded:
		return "firmware not loaded"
	case StatusNotInAppMode:
		return "not in application mode"
	case StatusError:
		return "error"
	case StatusNoNewData:
		return "no new data"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrorCode qualifies StatusError.
type ErrorCode int

const (
	CodeNone ErrorCode = iota
	CodeWriteRegInvalid
	CodeReadRegInvalid
	CodeMeasModeInvalid
	CodeMaxResistance
	CodeHeaterFault
	CodeHeaterSupply
	CodeUnknown
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeWriteRegInvalid:
		return "WRITE_REG_INVALID"
	case CodeReadRegInvalid:
		return "READ_REG_INVALID"
	case CodeMeasModeInvalid:
		return "MEASMODE_INVALID"
	case CodeMaxResistance:
		return "MAX_RESISTANCE"
	case CodeHeaterFault:
		return "HEATER_FAULT"
	case CodeHeaterSupply:
		return "HEATER_SUPPLY"
	default:
		return "UNKNOWN"
	}
}

// Disposition is the decoded meaning of the status byte(s) of a block.
type Disposition struct {
	Status Status
	Code   ErrorCode
}

var OK = Disposition{Status: StatusOK}

func Dispose(s Status) Disposition {
	return Disposition{Status: s}
}

func HasError(code ErrorCode) Disposition {
	return Disposition{Status: StatusError, Code: code}
}

func (d Disposition) OK() bool {
	return d.Status == StatusOK
}

func (d Disposition) String() string {
	if d.Status == StatusError {
		return fmt.Sprintf("error %s", d.Code)
	}
	return d.Status.String()
}

// Err maps the disposition onto the sensor error taxonomy; nil for OK.
func (d Disposition) Err() error {
	switch d.Status {
	case StatusOK:
		return nil
	case StatusBusy:
		return airmon.ErrSensorBusy
	case StatusUncalibrated:
		return airmon.ErrSensorUncalibrated
	case StatusNoNewData:
		return airmon.ErrSensorDataStale
	case StatusError:
		return fmt.Errorf("%w: %s", airmon.ErrSensorFirmwareFault, d.Code)
	default:
		return fmt.Errorf("%w: %s", airmon.ErrSensorFirmwareFault, d.Status)
	}
}

// recovery tells the driver what to do after a non-OK disposition.
type recovery int

const (
	recoverNone recovery = iota
	recoverReset
	recoverReinit
	recoverResetReinit
)

func (d Disposition) recovery() recovery {
	switch d.Status {
	case StatusUncalibrated:
		return recoverReinit
	case StatusError:
		return recoverResetReinit
	default:
		return recoverNone
	}
}
