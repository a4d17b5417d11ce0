package news2

// Tier is the clinical risk band for a total score.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

var validTiers = map[Tier]bool{TierLow: true, TierMedium: true, TierHigh: true}

// Tiers in ascending order of risk.
var Tiers = []Tier{TierLow, TierMedium, TierHigh}

// Breakdown holds the points for each parameter.
type Breakdown struct {
	RespiratoryRate int `json:"respiratoryRate"`
	SpO2            int `json:"spo2"`
	AirOrOxygen     int `json:"airOrOxygen"`
	SystolicBP      int `json:"systolicBp"`
	PulseRate       int `json:"pulseRate"`
	Consciousness   int `json:"consciousness"`
	Temperature     int `json:"temperature"`
}

func (b Breakdown) Total() int {
	return b.RespiratoryRate + b.SpO2 + b.AirOrOxygen + b.SystolicBP +
		b.PulseRate + b.Consciousness + b.Temperature
}

// MaxSingle is the highest score of any one parameter.
func (b Breakdown) MaxSingle() int {
	m := 0
	for _, v := range []int{b.RespiratoryRate, b.SpO2, b.AirOrOxygen, b.SystolicBP, b.PulseRate, b.Consciousness, b.Temperature} {
		if v > m {
			m = v
		}
	}
	return m
}

// TierFor maps a total to its band. A single parameter scoring 3 lifts a
// low total to medium.
func TierFor(total, maxSingle int) Tier {
	switch {
	case total >= 7:
		return TierHigh
	case total >= 5:
		return TierMedium
	case maxSingle >= 3:
		return TierMedium
	}
	return TierLow
}

func scoreRespiratoryRate(rr int) int {
	switch {
	case rr <= 8:
		return 3
	case rr <= 11:
		return 1
	case rr <= 20:
		return 0
	case rr <= 24:
		return 2
	}
	return 3
}

// scoreSpO2 uses scale 1 unless the client has a prescribed target range
// for hypercapnic respiratory failure (scale 2). On scale 2, high
// saturations only score when the client is on oxygen.
func scoreSpO2(spo2, scale int, onOxygen bool) int {
	if scale == 2 {
		switch {
		case spo2 <= 83:
			return 3
		case spo2 <= 85:
			return 2
		case spo2 <= 87:
			return 1
		case spo2 <= 92 || !onOxygen:
			return 0
		case spo2 <= 94:
			return 1
		case spo2 <= 96:
			return 2
		}
		return 3
	}
	switch {
	case spo2 <= 91:
		return 3
	case spo2 <= 93:
		return 2
	case spo2 <= 95:
		return 1
	}
	return 0
}

func scoreSystolicBP(sbp int) int {
	switch {
	case sbp <= 90:
		return 3
	case sbp <= 100:
		return 2
	case sbp <= 110:
		return 1
	case sbp <= 219:
		return 0
	}
	return 3
}

func scorePulse(hr int) int {
	switch {
	case hr <= 40:
		return 3
	case hr <= 50:
		return 1
	case hr <= 90:
		return 0
	case hr <= 110:
		return 1
	case hr <= 130:
		return 2
	}
	return 3
}

func scoreTemperature(t float64) int {
	switch {
	case t <= 35.0:
		return 3
	case t <= 36.0:
		return 1
	case t <= 38.0:
		return 0
	case t <= 39.0:
		return 1
	}
	return 2
}

func scoreConsciousness(c Consciousness) int {
	if c == Alert {
		return 0
	}
	return 3
}

// Score computes the breakdown. ok is false when any vital sign is
// missing, in which case the breakdown is partial.
func Score(o *Observation) (b Breakdown, ok bool) {
	ok = o.RespiratoryRate != nil && o.SpO2 != nil && o.SystolicBP != nil &&
		o.PulseRate != nil && o.Temperature != nil
	if o.RespiratoryRate != nil {
		b.RespiratoryRate = scoreRespiratoryRate(*o.RespiratoryRate)
	}
	if o.SpO2 != nil {
		b.SpO2 = scoreSpO2(*o.SpO2, o.SpO2Scale, o.OnOxygen)
	}
	if o.OnOxygen {
		b.AirOrOxygen = 2
	}
	if o.SystolicBP != nil {
		b.SystolicBP = scoreSystolicBP(*o.SystolicBP)
	}
	if o.PulseRate != nil {
		b.PulseRate = scorePulse(*o.PulseRate)
	}
	if o.Temperature != nil {
		b.Temperature = scoreTemperature(*o.Temperature)
	}
	b.Consciousness = scoreConsciousness(o.Consciousness)
	return b, ok
}
