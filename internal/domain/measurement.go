package domain

import "time"

// Measurement is one raw telemetry row from a device. The three ADC channels
// carry radiometer counts, Temps is a variable-length one-wire sensor array,
// and the bus triple comes from the power monitor. Calibrated channels are
// absent until a calibration is configured.
type Measurement struct {
	ID          string
	DeviceID    string
	Timestamp   time.Time
	TimestampMS *int64
	ADC1        float64
	ADC2        float64
	ADC3        float64
	Temps       []float64
	BusV        float64
	BusI        float64
	BusP        float64
	ADC1Cal     *float64
	ADC2Cal     *float64
	ADC3Cal     *float64
}

// MeasurementPoint is one element of a telemetry series response: either a
// raw row or a synthetic bucket average. When bucketed, each channel is the
// arithmetic mean of the contributing rows, temperature positions are
// averaged position-wise, and trailing positions with no data are trimmed.
type MeasurementPoint struct {
	Timestamp   time.Time
	TimestampMS *int64
	ADC1        float64
	ADC2        float64
	ADC3        float64
	Temps       []float64
	BusV        float64
	BusI        float64
	BusP        float64
	ADC1Cal     *float64
	ADC2Cal     *float64
	ADC3Cal     *float64
}

// PointFromMeasurement converts a raw row to a series point.
func PointFromMeasurement(m *Measurement) *MeasurementPoint {
	temps := make([]float64, len(m.Temps))
	copy(temps, m.Temps)
	return &MeasurementPoint{
		Timestamp:   m.Timestamp,
		TimestampMS: m.TimestampMS,
		ADC1:        m.ADC1,
		ADC2:        m.ADC2,
		ADC3:        m.ADC3,
		Temps:       temps,
		BusV:        m.BusV,
		BusI:        m.BusI,
		BusP:        m.BusP,
		ADC1Cal:     m.ADC1Cal,
		ADC2Cal:     m.ADC2Cal,
		ADC3Cal:     m.ADC3Cal,
	}
}
