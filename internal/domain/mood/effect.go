package mood

// IntensityClass buckets the 1..10 intensity scale for presentation layers.
type IntensityClass string

const (
	IntensityLow    IntensityClass = "low"
	IntensityMedium IntensityClass = "medium"
	IntensityHigh   IntensityClass = "high"
)

// EffectParameters is pure presentation data derived from a mood's effect
// settings. The local UI and the overlay renderer both consume it, so the
// derivation must be deterministic.
type EffectParameters struct {
	Effect           Effect         `json:"effect"`
	AnimationSeconds float64        `json:"animationSeconds"` // one animation cycle; 0 for none
	TimingFunction   string         `json:"timingFunction,omitempty"`
	GlowRadius       float64        `json:"glowRadius,omitempty"`    // glow only, px
	GradientAngle    float64        `json:"gradientAngle,omitempty"` // gradient only, degrees
	Color            string         `json:"color"`
	ColorSecondary   string         `json:"colorSecondary,omitempty"`
	Intensity        IntensityClass `json:"intensity"`
}

// ClassForIntensity buckets intensity: >=8 high, >=5 medium, else low.
func ClassForIntensity(intensity int) IntensityClass {
	switch {
	case intensity >= 8:
		return IntensityHigh
	case intensity >= 5:
		return IntensityMedium
	default:
		return IntensityLow
	}
}

// Parameters derives the animation timing and intensity bucket for an effect.
// Intensity is clamped into [1,10]. Higher intensity means faster cycles:
// the base period (pulse 2s, wave 3s, glow 2s, gradient 4s) is divided by
// intensity/10.
func Parameters(effect Effect, intensity int, color, colorSecondary string) EffectParameters {
	if intensity < MinIntensity {
		intensity = MinIntensity
	}
	if intensity > MaxIntensity {
		intensity = MaxIntensity
	}
	n := float64(intensity) / float64(MaxIntensity)

	p := EffectParameters{
		Effect:         effect,
		Color:          color,
		ColorSecondary: colorSecondary,
		Intensity:      ClassForIntensity(intensity),
	}

	switch effect {
	case EffectPulse:
		p.AnimationSeconds = 2 / n
		p.TimingFunction = "ease-in-out"
	case EffectWave:
		p.AnimationSeconds = 3 / n
		p.TimingFunction = "ease-in-out"
	case EffectGlow:
		p.AnimationSeconds = 2 / n
		p.GlowRadius = n * 20
	case EffectGradient:
		p.AnimationSeconds = 4 / n
		p.GradientAngle = n * 360
	}

	return p
}

// Parameters derives the effect parameters for the mood's own settings.
func (m *Mood) Parameters() EffectParameters {
	return Parameters(m.Effect, m.Intensity, m.Color, m.ColorSecondary)
}
