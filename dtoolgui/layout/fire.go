package layout

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/graph"
)

// minDistance guards the pair terms against coincident vertices
const minDistance = 1e-9

// Graph is what the engine lays out
type Graph interface {
	NumVertices() int
	Edges() []graph.Edge
}

// Engine places graph vertices in the plane. Edges act as springs, all vertex
// pairs repel through a screened Coulomb potential, and the system is relaxed
// by velocity Verlet steps under the FIRE rule.
type Engine struct {
	mu sync.Mutex

	params Params
	n      int
	edges  []graph.Edge

	pos   []r2.Vec
	vel   []r2.Vec
	force []r2.Vec

	energy     float64
	dt         float64
	alpha      float64
	cooldown   int
	iterations int

	metrics *common.Metrics
}

// New places the vertices of g on a square grid and relaxes them for
// params.InitIterations steps. metrics may be nil.
func New(g Graph, params Params, metrics *common.Metrics) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n := g.NumVertices()
	e := &Engine{
		params:   params,
		n:        n,
		edges:    g.Edges(),
		pos:      make([]r2.Vec, n),
		vel:      make([]r2.Vec, n),
		force:    make([]r2.Vec, n),
		dt:       params.InitialTimestep,
		alpha:    params.InitialAlpha,
		cooldown: params.MinSteps,
		metrics:  metrics,
	}

	side := int(math.Ceil(math.Sqrt(float64(n))))
	for i := range e.pos {
		e.pos[i] = r2.Vec{
			X: float64(i%side) * params.EquilibriumDistance,
			Y: float64(i/side) * params.EquilibriumDistance,
		}
	}
	e.energy = e.computeForces(e.pos, e.force)

	for i := 0; i < params.InitIterations; i++ {
		e.Iterate()
	}
	return e, nil
}

// computeForces writes the forces at positions pos into f and returns the energy
func (e *Engine) computeForces(pos, f []r2.Vec) float64 {
	for i := range f {
		f[i] = r2.Vec{}
	}
	if e.n <= 1 {
		return 0
	}

	p := e.params
	energy := 0.0

	for _, edge := range e.edges {
		i, j := edge.From, edge.To
		if i == j {
			continue
		}
		d := r2.Sub(pos[i], pos[j])
		dist := math.Max(r2.Norm(d), minDistance)
		stretch := dist - p.EquilibriumDistance
		energy += 0.5 * p.SpringConstant * stretch * stretch

		fi := r2.Scale(-p.SpringConstant*stretch/dist, d)
		f[i] = r2.Add(f[i], fi)
		f[j] = r2.Sub(f[j], fi)
	}

	// screened Coulomb: C*erf((r/l)^p)/r^p, each pair once
	for i := 0; i < e.n; i++ {
		for j := i + 1; j < e.n; j++ {
			d := r2.Sub(pos[i], pos[j])
			dist := math.Max(r2.Norm(d), minDistance)
			pairEnergy, dEdr := coulomb(dist, p)
			energy += pairEnergy

			fi := r2.Scale(-dEdr/dist, d)
			f[i] = r2.Add(f[i], fi)
			f[j] = r2.Sub(f[j], fi)
		}
	}
	return energy
}

// coulomb returns the screened Coulomb energy at distance r and its derivative
func coulomb(r float64, p Params) (float64, float64) {
	u := r / p.CoreLength
	up := math.Pow(u, p.Exponent)
	rp := math.Pow(r, p.Exponent)
	erf := math.Erf(up)

	energy := p.CoulombStrength * erf / rp
	// d/dr erf(u^p) = 2/sqrt(pi) * exp(-u^2p) * p * u^(p-1) / l
	dErf := 2 / math.Sqrt(math.Pi) * math.Exp(-up*up) * p.Exponent * math.Pow(u, p.Exponent-1) / p.CoreLength
	deriv := p.CoulombStrength * (dErf/rp - p.Exponent*erf/(rp*r))
	return energy, deriv
}

// Iterate advances the layout by one accepted step. Steps that would raise
// the energy are undone and retried with a smaller timestep.
func (e *Engine) Iterate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.iterations++
	if e.metrics != nil {
		e.metrics.LayoutIterations.Inc()
	}
	if e.n <= 1 {
		e.energy = 0
		for i := range e.force {
			e.force[i] = r2.Vec{}
		}
		return
	}

	oldPos := append([]r2.Vec(nil), e.pos...)
	oldVel := append([]r2.Vec(nil), e.vel...)
	oldForce := append([]r2.Vec(nil), e.force...)
	oldEnergy := e.energy

	accepted := false
	for attempt := 0; attempt <= e.params.MaxUphillRetries; attempt++ {
		newEnergy := e.verletStep()
		if newEnergy <= oldEnergy {
			e.energy = newEnergy
			accepted = true
			break
		}
		copy(e.pos, oldPos)
		copy(e.vel, oldVel)
		copy(e.force, oldForce)
		e.dt *= e.params.TimestepDecrease
	}
	if !accepted {
		return
	}

	power := 0.0
	for i := range e.vel {
		power += r2.Dot(e.vel[i], e.force[i])
	}
	if power < 0 {
		for i := range e.vel {
			e.vel[i] = r2.Vec{}
		}
		e.cooldown = e.params.MinSteps
		e.dt *= e.params.TimestepDecrease
		e.alpha = e.params.InitialAlpha
		return
	}

	vNorm, fNorm := globalNorm(e.vel), globalNorm(e.force)
	if fNorm > 0 {
		for i := range e.vel {
			e.vel[i] = r2.Add(
				r2.Scale(1-e.alpha, e.vel[i]),
				r2.Scale(e.alpha*vNorm/fNorm, e.force[i]),
			)
		}
	}
	if e.cooldown <= 0 {
		e.dt = math.Min(e.dt*e.params.TimestepIncrease, e.params.MaxTimestep)
		e.alpha *= e.params.AlphaDecrease
	} else {
		e.cooldown--
	}
}

// verletStep does half-kick, drift, force update, half-kick and returns the new energy
func (e *Engine) verletStep() float64 {
	half := 0.5 * e.dt / e.params.Mass
	for i := range e.vel {
		e.vel[i] = r2.Add(e.vel[i], r2.Scale(half, e.force[i]))
		e.pos[i] = r2.Add(e.pos[i], r2.Scale(e.dt, e.vel[i]))
	}
	energy := e.computeForces(e.pos, e.force)
	for i := range e.vel {
		e.vel[i] = r2.Add(e.vel[i], r2.Scale(half, e.force[i]))
	}
	return energy
}

func globalNorm(vs []r2.Vec) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += r2.Dot(v, v)
	}
	return math.Sqrt(sum)
}

// Energy returns the current total energy
func (e *Engine) Energy() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.energy
}

// MaxForce returns the largest force norm over all vertices
func (e *Engine) MaxForce() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.n == 0 {
		return 0
	}
	norms := make([]float64, e.n)
	for i, f := range e.force {
		norms[i] = r2.Norm(f)
	}
	return floats.Max(norms)
}

// Converged reports whether the largest force is below the tolerance
func (e *Engine) Converged() bool {
	return e.MaxForce() < e.params.Tolerance
}

// Positions returns a copy of the vertex positions by index
func (e *Engine) Positions() []r2.Vec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]r2.Vec(nil), e.pos...)
}

// Forces returns a copy of the forces by index
func (e *Engine) Forces() []r2.Vec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]r2.Vec(nil), e.force...)
}

// Timestep returns the current integration timestep
func (e *Engine) Timestep() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dt
}

// Iterations counts Iterate calls, initialization included
func (e *Engine) Iterations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iterations
}

// Relax iterates until the layout converges or maxIter steps have run.
// It returns the number of steps taken.
func (e *Engine) Relax(maxIter int) int {
	for i := 0; i < maxIter; i++ {
		if e.Converged() {
			return i
		}
		e.Iterate()
	}
	return maxIter
}
