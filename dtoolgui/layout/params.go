package layout

import (
	"fmt"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
)

// Params tunes the force field and the FIRE integrator
type Params struct {
	SpringConstant      float64 // k
	EquilibriumDistance float64 // d0, also the initial grid spacing
	CoulombStrength     float64 // C
	CoreLength          float64 // screening length
	Exponent            float64 // p
	Mass                float64

	InitialTimestep  float64
	MaxTimestep      float64
	TimestepIncrease float64
	TimestepDecrease float64
	InitialAlpha     float64
	AlphaDecrease    float64
	MinSteps         int

	// InitIterations run before the engine is handed out
	InitIterations   int
	Tolerance        float64
	MaxUphillRetries int
}

func DefaultParams() Params {
	return Params{
		SpringConstant:      1,
		EquilibriumDistance: 1,
		CoulombStrength:     1,
		CoreLength:          1,
		Exponent:            2,
		Mass:                1,
		InitialTimestep:     0.01,
		MaxTimestep:         0.1,
		TimestepIncrease:    1.1,
		TimestepDecrease:    0.5,
		InitialAlpha:        0.1,
		AlphaDecrease:       0.99,
		MinSteps:            5,
		InitIterations:      100,
		Tolerance:           1e-3,
		MaxUphillRetries:    5,
	}
}

// Validate rejects parameters the integrator cannot run with
func (p Params) Validate() error {
	positive := map[string]float64{
		"equilibrium distance": p.EquilibriumDistance,
		"core length":          p.CoreLength,
		"exponent":             p.Exponent,
		"mass":                 p.Mass,
		"initial timestep":     p.InitialTimestep,
		"max timestep":         p.MaxTimestep,
	}
	for name, v := range positive {
		if v <= 0 {
			return common.NewValidationError(name, fmt.Sprint(v), "must be positive")
		}
	}
	if p.TimestepDecrease <= 0 || p.TimestepDecrease >= 1 {
		return common.NewValidationError("timestep decrease", fmt.Sprint(p.TimestepDecrease), "must lie in (0, 1)")
	}
	if p.TimestepIncrease < 1 {
		return common.NewValidationError("timestep increase", fmt.Sprint(p.TimestepIncrease), "must be at least 1")
	}
	if p.InitialAlpha < 0 || p.InitialAlpha > 1 {
		return common.NewValidationError("initial alpha", fmt.Sprint(p.InitialAlpha), "must lie in [0, 1]")
	}
	if p.MinSteps < 0 || p.InitIterations < 0 || p.MaxUphillRetries < 0 {
		return common.NewValidationError("step counts", "", "cannot be negative")
	}
	return nil
}
