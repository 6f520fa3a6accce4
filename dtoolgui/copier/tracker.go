package copier

// Tracker is the progress of one copy job
type Tracker struct {
	Label  string
	Length int
	Step   int
	Done   bool
}

// Progress is the aggregate view handed to the display
type Progress struct {
	// Fraction is the summed step over the summed length of all trackers
	Fraction float64
	Trackers []Tracker
}

// Job updates one tracker of a Manager
type Job struct {
	m  *Manager
	id int
}

type tracked struct {
	id int
	Tracker
}

// SetLength sets the number of steps of the job. Step is clamped to it.
func (j *Job) SetLength(n int) {
	j.m.update(j.id, func(t *Tracker) {
		t.Length = max(n, 0)
		t.Step = min(t.Step, t.Length)
	})
}

// Advance moves the job n steps forward, never past its length
func (j *Job) Advance(n int) {
	if n <= 0 {
		return
	}
	j.m.update(j.id, func(t *Tracker) {
		t.Step = min(t.Step+n, t.Length)
	})
}

// Finish marks the job done. Finishing twice is a no-op.
func (j *Job) Finish() {
	j.m.finish(j.id)
}

func fraction(trackers []tracked) float64 {
	var step, length int
	for _, t := range trackers {
		step += t.Step
		length += t.Length
	}
	if length == 0 {
		return 0
	}
	return float64(step) / float64(length)
}
