package builtin

import (
	"math"

	"github.com/cwbudde/algo-reamp/plugin"
	"github.com/cwbudde/algo-vecmath"
)

// Parameter IDs shared by the built-in effects.
const (
	ParamGainDB    = "gain_db"
	ParamDrive     = "drive"
	ParamMode      = "mode"
	ParamOutputDB  = "output_db"
	ParamMix       = "mix"
	ParamType      = "type"
	ParamFreq      = "freq"
	ParamQ         = "q"
	ParamThreshold = "threshold_db"
	ParamAttack    = "attack_ms"
	ParamHold      = "hold_ms"
	ParamRelease   = "release_ms"
)

// Drive shaper modes.
const (
	DriveSoftClip = iota
	DriveTanh
	DriveHardClip
)

// Filter types.
const (
	FilterLowpass = iota
	FilterHighpass
	FilterPeak
)

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// gainProc scales every channel.
type gainProc struct {
	g float64
}

func (p *gainProc) update(params *plugin.Params, _ plugin.Format) {
	p.g = dbToGain(params.Get(ParamGainDB, 0))
}

func (p *gainProc) process(_ int, block []float64) {
	vecmath.ScaleBlockInPlace(block, p.g)
}

func (p *gainProc) reset() {}

// driveProc is a memoryless waveshaper with dry/wet mix.
type driveProc struct {
	drive float64
	mode  int
	out   float64
	mix   float64
	dry   []float64
}

func (p *driveProc) update(params *plugin.Params, _ plugin.Format) {
	p.drive = params.Get(ParamDrive, 4)
	p.mode = int(math.Round(params.Get(ParamMode, DriveSoftClip)))
	p.out = dbToGain(params.Get(ParamOutputDB, -6))
	p.mix = params.Get(ParamMix, 1)
}

func (p *driveProc) process(_ int, block []float64) {
	if cap(p.dry) < len(block) {
		p.dry = make([]float64, len(block))
	}

	dry := p.dry[:len(block)]
	vecmath.ScaleBlock(dry, block, 1-p.mix)

	for i, x := range block {
		block[i] = p.shape(x*p.drive) * p.out * p.mix
	}

	vecmath.AddBlockInPlace(block, dry)
}

func (p *driveProc) shape(x float64) float64 {
	switch p.mode {
	case DriveTanh:
		return math.Tanh(x)
	case DriveHardClip:
		return min(max(x, -1), 1)
	default:
		if math.Abs(x) < 1 {
			return 1.5 * (x - (x*x*x)/3)
		}

		return math.Copysign(1, x)
	}
}

func (p *driveProc) reset() {}

type biquadCoefficients struct {
	b0, b1, b2 float64
	a1, a2     float64
}

type biquadState struct {
	d0, d1 float64
}

// filterProc is an RBJ biquad per channel in Direct Form II Transposed.
type filterProc struct {
	c     biquadCoefficients
	state []biquadState
}

func (p *filterProc) update(params *plugin.Params, format plugin.Format) {
	if len(p.state) != format.Channels {
		p.state = make([]biquadState, format.Channels)
	}

	p.c = designBiquad(
		int(math.Round(params.Get(ParamType, FilterLowpass))),
		params.Get(ParamFreq, 1000),
		params.Get(ParamQ, 1/math.Sqrt2),
		params.Get(ParamGainDB, 0),
		format.SampleRate,
	)
}

func (p *filterProc) process(ch int, block []float64) {
	c := p.c
	s := &p.state[ch]

	for i, x := range block {
		y := c.b0*x + s.d0
		s.d0 = c.b1*x - c.a1*y + s.d1
		s.d1 = c.b2*x - c.a2*y
		block[i] = y
	}
}

func (p *filterProc) reset() {
	for i := range p.state {
		p.state[i] = biquadState{}
	}
}

// designBiquad returns RBJ cookbook coefficients. Frequencies outside
// (0, Nyquist) yield a pass-through section.
func designBiquad(kind int, freq, q, gainDB, sampleRate float64) biquadCoefficients {
	if sampleRate <= 0 || freq <= 0 || freq >= sampleRate/2 {
		return biquadCoefficients{b0: 1}
	}

	if q <= 0 {
		q = 1 / math.Sqrt2
	}

	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	var b0, b1, b2, a0, a1, a2 float64

	switch kind {
	case FilterHighpass:
		b0 = (1 + cw) / 2
		b1 = -(1 + cw)
		b2 = (1 + cw) / 2
		a0 = 1 + alpha
		a1 = -2 * cw
		a2 = 1 - alpha
	case FilterPeak:
		a := math.Pow(10, gainDB/40)
		b0 = 1 + alpha*a
		b1 = -2 * cw
		b2 = 1 - alpha*a
		a0 = 1 + alpha/a
		a1 = -2 * cw
		a2 = 1 - alpha/a
	default:
		b0 = (1 - cw) / 2
		b1 = 1 - cw
		b2 = (1 - cw) / 2
		a0 = 1 + alpha
		a1 = -2 * cw
		a2 = 1 - alpha
	}

	return biquadCoefficients{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

type gateChannel struct {
	env  float64
	hold int
}

// gateProc is a hard-knee noise gate with a peak envelope follower and hold.
type gateProc struct {
	threshold    float64
	attackCoeff  float64
	releaseCoeff float64
	holdSamples  int
	channels     []gateChannel
}

func (p *gateProc) update(params *plugin.Params, format plugin.Format) {
	if len(p.channels) != format.Channels {
		p.channels = make([]gateChannel, format.Channels)
	}

	sr := format.SampleRate
	p.threshold = dbToGain(params.Get(ParamThreshold, -60))
	p.attackCoeff = 1 - math.Exp(-math.Ln2/(params.Get(ParamAttack, 1)*0.001*sr))
	p.releaseCoeff = math.Exp(-math.Ln2 / (params.Get(ParamRelease, 100) * 0.001 * sr))
	p.holdSamples = int(params.Get(ParamHold, 10) * 0.001 * sr)
}

func (p *gateProc) process(ch int, block []float64) {
	g := &p.channels[ch]

	for i, x := range block {
		level := math.Abs(x)
		if level > g.env {
			g.env += (level - g.env) * p.attackCoeff
		} else {
			g.env = level + (g.env-level)*p.releaseCoeff
		}

		if g.env >= p.threshold {
			g.hold = p.holdSamples
			continue
		}

		if g.hold > 0 {
			g.hold--
			continue
		}

		block[i] = 0
	}
}

func (p *gateProc) reset() {
	for i := range p.channels {
		p.channels[i] = gateChannel{}
	}
}
