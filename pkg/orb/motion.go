package orb

// sourceLevel is the energy branch shared by the variants. Speaking reads
// only the playback amplitude, listening only the compressed mic volume, and
// idle only the variant's own phase.
func sourceLevel(in inputs, idlePhase, idleDepth float64) float64 {
	switch in.regime() {
	case speakingRegime:
		return clamp01(in.amplitude)
	case listeningRegime:
		return Compress(in.mic)
	default:
		return pulse(idlePhase) * idleDepth
	}
}

// rates holds one tuning value per regime.
type rates struct {
	idle, listening, speaking float64
}

func (r rates) pick(in inputs) float64 {
	switch in.regime() {
	case speakingRegime:
		return r.speaking
	case listeningRegime:
		return r.listening
	default:
		return r.idle
	}
}
