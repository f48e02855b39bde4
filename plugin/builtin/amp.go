package builtin

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reamp/nam"
	"github.com/cwbudde/algo-reamp/plugin"
)

// Amp model parameter IDs.
const (
	ParamInputGainDB  = "input_gain_db"
	ParamOutputGainDB = "output_gain_db"
)

// ErrNoModel is returned when an amp unit renders before a model is loaded.
var ErrNoModel = errors.New("builtin: no amp model loaded")

// ampProc runs one nam.Processor per channel between input and output gain.
type ampProc struct {
	model    *nam.Model
	channels []*nam.Processor
	inGain   float64
	outGain  float64
}

func (p *ampProc) update(params *plugin.Params, format plugin.Format) {
	p.inGain = dbToGain(params.Get(ParamInputGainDB, 0))
	p.outGain = dbToGain(params.Get(ParamOutputGainDB, 0))

	if p.model == nil {
		p.channels = nil
		return
	}

	if len(p.channels) != format.Channels {
		p.channels = make([]*nam.Processor, format.Channels)
		for ch := range p.channels {
			p.channels[ch] = p.model.NewProcessor()
		}
	}
}

func (p *ampProc) process(ch int, block []float64) {
	for i := range block {
		block[i] *= p.inGain
	}

	p.channels[ch].ProcessInPlace(block)

	for i := range block {
		block[i] *= p.outGain
	}
}

func (p *ampProc) reset() {
	for _, c := range p.channels {
		c.Reset()
	}
}

// ampUnit is the neural amp-model plugin. It renders only after LoadFile.
type ampUnit struct {
	*unit

	amp  *ampProc
	path string
	log  logrus.FieldLogger
}

func newAmpUnit(log logrus.FieldLogger) *ampUnit {
	amp := &ampProc{}

	return &ampUnit{
		unit: newUnit(ampInfo, amp,
			plugin.Parameter{ID: ParamInputGainDB, Name: "Input", Unit: "dB", Min: -24, Max: 24, Default: 0},
			plugin.Parameter{ID: ParamOutputGainDB, Name: "Output", Unit: "dB", Min: -24, Max: 24, Default: 0},
		),
		amp: amp,
		log: log,
	}
}

// LoadFile implements plugin.FileLoader.
func (a *ampUnit) LoadFile(path string) error {
	m, err := nam.Load(path)
	if err != nil {
		return fmt.Errorf("builtin: load amp model: %w", err)
	}

	a.amp.model = m
	a.amp.channels = nil
	a.path = path
	a.dirty = true

	a.checkSampleRate()

	return nil
}

func (a *ampUnit) Configure(format plugin.Format, maxFrames int) error {
	if err := a.unit.Configure(format, maxFrames); err != nil {
		return err
	}

	a.checkSampleRate()

	return nil
}

func (a *ampUnit) Render(src plugin.Source, dst [][]float32) (int, plugin.Status) {
	if a.amp.model == nil {
		a.log.WithError(ErrNoModel).Error("amp unit rendered without a model")
		return 0, plugin.StatusError
	}

	return a.unit.Render(src, dst)
}

// checkSampleRate warns when the model was trained at a different rate
// than the unit is configured for. The model still runs.
func (a *ampUnit) checkSampleRate() {
	m := a.amp.model
	if m == nil || m.SampleRate <= 0 || !a.format.Valid() {
		return
	}

	if math.Abs(m.SampleRate-a.format.SampleRate) > 0.5 {
		a.log.WithFields(logrus.Fields{
			"model":       a.path,
			"model_rate":  m.SampleRate,
			"render_rate": a.format.SampleRate,
		}).Warn("amp model sample rate differs from render rate")
	}
}
