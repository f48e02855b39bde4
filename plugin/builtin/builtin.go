package builtin

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reamp/plugin"
)

// Built-in plugin IDs.
const (
	IDGain   = "builtin.gain"
	IDDrive  = "builtin.drive"
	IDFilter = "builtin.filter"
	IDGate   = "builtin.gate"
	IDAmp    = "builtin.nam"
)

// Vendor is reported by every built-in plugin except the amp model.
const Vendor = "algo-reamp"

var ampInfo = plugin.Info{
	ID:       IDAmp,
	Name:     "NAM Linear",
	Vendor:   "Neural Amp Modeler",
	Version:  "1.0.0",
	Category: plugin.CategoryAmpModel,
}

type config struct {
	log logrus.FieldLogger
}

// Option configures the built-in host.
type Option func(*config)

// WithLogger sets the logger used by units that report warnings.
func WithLogger(log logrus.FieldLogger) Option {
	return func(cfg *config) {
		if log != nil {
			cfg.log = log
		}
	}
}

// NewRegistry returns a registry holding every built-in plugin.
func NewRegistry(opts ...Option) *plugin.Registry {
	r := plugin.NewRegistry()
	Register(r, opts...)

	return r
}

// Register adds the built-in plugins to r. It panics if any ID is taken.
func Register(r *plugin.Registry, opts ...Option) {
	cfg := config{log: logrus.StandardLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	r.MustRegister(effectInfo(IDGain, "Gain"), func(context.Context) (plugin.Unit, error) {
		return newUnit(effectInfo(IDGain, "Gain"), &gainProc{},
			plugin.Parameter{ID: ParamGainDB, Name: "Gain", Unit: "dB", Min: -60, Max: 24, Default: 0},
		), nil
	})

	r.MustRegister(effectInfo(IDDrive, "Drive"), func(context.Context) (plugin.Unit, error) {
		return newUnit(effectInfo(IDDrive, "Drive"), &driveProc{},
			plugin.Parameter{ID: ParamDrive, Name: "Drive", Min: 1, Max: 50, Default: 4},
			plugin.Parameter{ID: ParamMode, Name: "Mode", Min: DriveSoftClip, Max: DriveHardClip, Default: DriveSoftClip},
			plugin.Parameter{ID: ParamOutputDB, Name: "Output", Unit: "dB", Min: -24, Max: 12, Default: -6},
			plugin.Parameter{ID: ParamMix, Name: "Mix", Min: 0, Max: 1, Default: 1},
		), nil
	})

	r.MustRegister(effectInfo(IDFilter, "Filter"), func(context.Context) (plugin.Unit, error) {
		return newUnit(effectInfo(IDFilter, "Filter"), &filterProc{},
			plugin.Parameter{ID: ParamType, Name: "Type", Min: FilterLowpass, Max: FilterPeak, Default: FilterLowpass},
			plugin.Parameter{ID: ParamFreq, Name: "Frequency", Unit: "Hz", Min: 20, Max: 20000, Default: 1000},
			plugin.Parameter{ID: ParamQ, Name: "Q", Min: 0.1, Max: 10, Default: 1 / math.Sqrt2},
			plugin.Parameter{ID: ParamGainDB, Name: "Gain", Unit: "dB", Min: -24, Max: 24, Default: 0},
		), nil
	})

	r.MustRegister(effectInfo(IDGate, "Noise Gate"), func(context.Context) (plugin.Unit, error) {
		return newUnit(effectInfo(IDGate, "Noise Gate"), &gateProc{},
			plugin.Parameter{ID: ParamThreshold, Name: "Threshold", Unit: "dB", Min: -96, Max: 0, Default: -60},
			plugin.Parameter{ID: ParamAttack, Name: "Attack", Unit: "ms", Min: 0.1, Max: 100, Default: 1},
			plugin.Parameter{ID: ParamHold, Name: "Hold", Unit: "ms", Min: 0, Max: 500, Default: 10},
			plugin.Parameter{ID: ParamRelease, Name: "Release", Unit: "ms", Min: 1, Max: 1000, Default: 100},
		), nil
	})

	r.MustRegister(ampInfo, func(context.Context) (plugin.Unit, error) {
		return newAmpUnit(cfg.log), nil
	})
}

func effectInfo(id, name string) plugin.Info {
	return plugin.Info{
		ID:       id,
		Name:     name,
		Vendor:   Vendor,
		Version:  "1.0.0",
		Category: plugin.CategoryEffect,
	}
}
