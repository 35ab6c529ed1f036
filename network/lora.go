// Package network simulates the LPWAN channel the nodes exchange
// intervals over: Semtech airtime, ETSI duty-cycle limits and an ALOHA
// collision model, abstract but parameterized from published
// measurements rather than packet-level radio simulation.
package network

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
)

// Standard LoRaWAN channel bandwidths in Hz.
const (
	Bandwidth125kHz = 125_000
	Bandwidth250kHz = 250_000
	Bandwidth500kHz = 500_000
)

// LoRaConfig holds the physical-layer parameters. Defaults follow the
// EU868 regional profile: SF9, 125 kHz, coding rate 4/5, 14 dBm, 1%
// duty cycle.
type LoRaConfig struct {
	SpreadingFactor int     `yaml:"spreading_factor"`
	Bandwidth       int     `yaml:"bandwidth"`
	CodingRate      int     `yaml:"coding_rate"` // 1..4, meaning 4/(4+CR)
	TxPowerDBm      int     `yaml:"tx_power_dbm"`
	DutyCycle       float64 `yaml:"duty_cycle"`
	PreambleLength  int     `yaml:"preamble_length"`
	ExplicitHeader  bool    `yaml:"explicit_header"`
	CRCEnabled      bool    `yaml:"crc_enabled"`

	// Mandatory for SF11-12 at 125 kHz; Validate enables it there.
	LowDataRateOptimize bool `yaml:"low_data_rate_optimize"`
}

func DefaultLoRaConfig() LoRaConfig {
	return LoRaConfig{
		SpreadingFactor: 9,
		Bandwidth:       Bandwidth125kHz,
		CodingRate:      1,
		TxPowerDBm:      14,
		DutyCycle:       0.01,
		PreambleLength:  8,
		ExplicitHeader:  true,
		CRCEnabled:      true,
	}
}

// Validate checks the parameters against the LoRaWAN and ETSI ranges
// and normalizes the low-data-rate flag for slow spreading factors.
func (c *LoRaConfig) Validate() error {
	var err error
	if c.SpreadingFactor < 7 || c.SpreadingFactor > 12 {
		err = multierr.Append(err, fmt.Errorf("spreading factor must be 7-12, got %d", c.SpreadingFactor))
	}
	switch c.Bandwidth {
	case Bandwidth125kHz, Bandwidth250kHz, Bandwidth500kHz:
	default:
		err = multierr.Append(err, fmt.Errorf("bandwidth must be 125, 250 or 500 kHz, got %d Hz", c.Bandwidth))
	}
	if c.CodingRate < 1 || c.CodingRate > 4 {
		err = multierr.Append(err, fmt.Errorf("coding rate must be 1-4, got %d", c.CodingRate))
	}
	if c.DutyCycle <= 0 || c.DutyCycle > 1 {
		err = multierr.Append(err, fmt.Errorf("duty cycle must be in (0, 1], got %g", c.DutyCycle))
	}
	if c.TxPowerDBm < 0 || c.TxPowerDBm > 30 {
		err = multierr.Append(err, fmt.Errorf("tx power must be 0-30 dBm, got %d", c.TxPowerDBm))
	}
	if c.PreambleLength <= 0 {
		err = multierr.Append(err, fmt.Errorf("preamble length must be positive, got %d", c.PreambleLength))
	}
	if err != nil {
		return err
	}
	if c.SpreadingFactor >= 11 && c.Bandwidth == Bandwidth125kHz {
		c.LowDataRateOptimize = true
	}
	return nil
}

// Airtime computes the on-air duration of a packet with the given
// payload length, per Semtech AN1200.13 §4.1.1.6.
func (c LoRaConfig) Airtime(payloadBytes int) time.Duration {
	sf := c.SpreadingFactor
	de := 0
	if c.LowDataRateOptimize {
		de = 1
	}
	h := 1 // implicit header
	if c.ExplicitHeader {
		h = 0
	}
	crc := 0
	if c.CRCEnabled {
		crc = 1
	}

	symbolTime := float64(int(1)<<sf) / float64(c.Bandwidth) // seconds
	preambleTime := (float64(c.PreambleLength) + 4.25) * symbolTime

	numerator := float64(8*payloadBytes - 4*sf + 28 + 16*crc - 20*h)
	denominator := float64(4 * (sf - 2*de))
	payloadSymbols := 8 + max(int(numerator/denominator)*(c.CodingRate+4), 0)
	payloadTime := float64(payloadSymbols) * symbolTime

	return time.Duration((preambleTime + payloadTime) * float64(time.Second))
}

// DutyCycleWait returns the mandatory silence after a transmission of
// the given airtime: T/D - T per ETSI EN 300 220 §4.2.1.
func (c LoRaConfig) DutyCycleWait(airtime time.Duration) time.Duration {
	wait := float64(airtime)/c.DutyCycle - float64(airtime)
	return time.Duration(wait)
}

// RequiredSNR returns the demodulation floor in dB for the configured
// spreading factor (SX1276 datasheet, table 10).
func (c LoRaConfig) RequiredSNR() float64 {
	snr := map[int]float64{
		7:  -7.5,
		8:  -10.0,
		9:  -12.5,
		10: -15.0,
		11: -17.5,
		12: -20.0,
	}
	return snr[c.SpreadingFactor]
}

// SuccessProbability is the pure-ALOHA packet success probability
// p_s = exp(-2G) for offered load G = N*D, with extra in-flight jamming
// transmissions counted into the load (Bor+ 2016, eq. 3).
func (c LoRaConfig) SuccessProbability(numNodes, jamming int) float64 {
	g := float64(numNodes+jamming) * c.DutyCycle
	return math.Exp(-2 * g)
}
