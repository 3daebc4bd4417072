package pooler

import (
	"errors"
	"fmt"
)

// DefaultSeed makes every pooler built from the same config identical.
const DefaultSeed = 42

// Config holds the pooler parameters.
type Config struct {
	// InputBits is the size of the encoded input space.
	InputBits int

	// NumColumns is the number of output columns.
	NumColumns int

	// PotentialRadius is how far, in input bits, a column's potential pool
	// reaches from its centre. Default: 0.15 * InputBits.
	PotentialRadius int

	// PotentialPct is the fraction of bits inside the radius that a column
	// may connect to. Default: 0.5.
	PotentialPct float64

	// ActiveColumns is k, the number of winning columns per input.
	// Default: max(1, 0.02 * NumColumns).
	ActiveColumns int

	// StimulusThreshold is the minimum raw overlap for a column to compete.
	StimulusThreshold int

	// Permanence dynamics. Permanences live in [0, 1].
	ConnectedPerm    float64
	PermIncrement    float64
	PermDecrement    float64
	InitConnectedPct float64

	// MaxBoost scales duty-cycle boosting. 0 disables boosting.
	MaxBoost float64

	// DutyCyclePeriod is the moving-average window for duty cycles.
	DutyCyclePeriod int

	// MinPctOverlapDutyCycles marks a column as weak when its overlap duty
	// cycle falls below this fraction of the best column's.
	MinPctOverlapDutyCycles float64

	// Seed feeds the RNG used to build potential pools.
	Seed int64
}

// DefaultConfig returns a config for the given dimensions.
func DefaultConfig(inputBits, numColumns int) Config {
	return Config{
		InputBits:               inputBits,
		NumColumns:              numColumns,
		PotentialRadius:         int(0.15 * float64(inputBits)),
		PotentialPct:            0.5,
		ActiveColumns:           max(1, int(0.02*float64(numColumns))),
		StimulusThreshold:       1,
		ConnectedPerm:           0.1,
		PermIncrement:           0.05,
		PermDecrement:           0.008,
		InitConnectedPct:        0.5,
		MaxBoost:                5.0,
		DutyCyclePeriod:         100,
		MinPctOverlapDutyCycles: 0.001,
		Seed:                    DefaultSeed,
	}
}

var errInvalidConfig = errors.New("invalid pooler config")

// Validate checks the config.
func (c Config) Validate() error {
	switch {
	case c.InputBits <= 0:
		return fmt.Errorf("%w: input bits must be positive", errInvalidConfig)
	case c.NumColumns <= 0:
		return fmt.Errorf("%w: columns must be positive", errInvalidConfig)
	case c.ActiveColumns <= 0 || c.ActiveColumns > c.NumColumns:
		return fmt.Errorf("%w: active columns %d not in [1, %d]", errInvalidConfig, c.ActiveColumns, c.NumColumns)
	case c.PotentialRadius < 0:
		return fmt.Errorf("%w: negative potential radius", errInvalidConfig)
	case c.PotentialPct <= 0 || c.PotentialPct > 1:
		return fmt.Errorf("%w: potential pct must be in (0, 1]", errInvalidConfig)
	case c.DutyCyclePeriod <= 0:
		return fmt.Errorf("%w: duty cycle period must be positive", errInvalidConfig)
	case c.MaxBoost < 0:
		return fmt.Errorf("%w: negative max boost", errInvalidConfig)
	}
	return nil
}
