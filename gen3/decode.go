package gen3

import "github.com/spanpanel/spanpanel-go/gen3/wire"

// decodeSinglePhase decodes a single-phase (120 V) metrics block, field 11
// of a power-metrics frame (spec §4.8.4).
func decodeSinglePhase(data []byte) circuitMetrics {
	f := wire.Parse(data)
	var m circuitMetrics

	if b := f.GetBytes(1); b != nil {
		_, _, avg := wire.MinMaxAvg(b)
		m.currentA = float64(avg) / 1000.0
	}
	if b := f.GetBytes(2); b != nil {
		_, _, avg := wire.MinMaxAvg(b)
		m.voltageV = float64(avg) / 1000.0
	}
	if b := f.GetBytes(3); b != nil {
		_, _, avg := wire.MinMaxAvg(b)
		m.powerW = float64(avg) / 2000.0
	}
	if b := f.GetBytes(4); b != nil {
		_, _, avg := wire.MinMaxAvg(b)
		m.apparentPowerVA = float64(avg) / 2000.0
	}
	if b := f.GetBytes(5); b != nil {
		_, _, avg := wire.MinMaxAvg(b)
		m.reactivePowerVar = float64(avg) / 2000.0
	}

	m.isOn = (m.voltageV * 1000) > breakerOffVoltageMV
	return m
}

// decodeDualPhase decodes a split-phase (240 V) metrics block, field 12 of a
// power-metrics frame (spec §4.8.4).
func decodeDualPhase(data []byte) circuitMetrics {
	f := wire.Parse(data)
	var m circuitMetrics

	if legA := f.GetBytes(1); legA != nil {
		la := wire.Parse(legA)
		if b := la.GetBytes(1); b != nil {
			_, _, avg := wire.MinMaxAvg(b)
			m.currentAA = float64(avg) / 1000.0
		}
		if b := la.GetBytes(2); b != nil {
			_, _, avg := wire.MinMaxAvg(b)
			m.voltageAV = float64(avg) / 1000.0
		}
	}
	if legB := f.GetBytes(2); legB != nil {
		lb := wire.Parse(legB)
		if b := lb.GetBytes(1); b != nil {
			_, _, avg := wire.MinMaxAvg(b)
			m.currentBA = float64(avg) / 1000.0
		}
		if b := lb.GetBytes(2); b != nil {
			_, _, avg := wire.MinMaxAvg(b)
			m.voltageBV = float64(avg) / 1000.0
		}
	}
	if combined := f.GetBytes(3); combined != nil {
		cf := wire.Parse(combined)
		if b := cf.GetBytes(2); b != nil {
			_, _, avg := wire.MinMaxAvg(b)
			m.voltageV = float64(avg) / 1000.0
		}
		if b := cf.GetBytes(3); b != nil {
			_, _, avg := wire.MinMaxAvg(b)
			m.powerW = float64(avg) / 2000.0
		}
		if b := cf.GetBytes(4); b != nil {
			_, _, avg := wire.MinMaxAvg(b)
			m.apparentPowerVA = float64(avg) / 2000.0
		}
		if b := cf.GetBytes(5); b != nil {
			_, _, avg := wire.MinMaxAvg(b)
			m.reactivePowerVar = float64(avg) / 2000.0
		}
		if b := cf.GetBytes(6); b != nil {
			_, _, avg := wire.MinMaxAvg(b)
			m.powerFactor = float64(avg) / 2000.0
		}
	}
	if b := f.GetBytes(4); b != nil {
		_, _, avg := wire.MinMaxAvg(b)
		m.frequencyHz = float64(avg) / 1000.0
	}

	m.currentA = m.currentAA + m.currentBA
	m.isOn = (m.voltageV * 1000) > breakerOffVoltageMV
	return m
}

// extractDeepestValue returns the largest non-zero varint found at
// targetField within nested sub-messages of data, mirroring the device's
// own deeply-nested main-feed power encoding.
func extractDeepestValue(data []byte, targetField int) uint64 {
	fields := wire.Parse(data)
	var best uint64
	for fn, vals := range fields {
		for _, v := range vals {
			switch val := v.(type) {
			case []byte:
				if len(val) > 0 {
					if inner := extractDeepestValue(val, targetField); inner > best {
						best = inner
					}
				}
			case uint64:
				if fn == targetField && val > best {
					best = val
				}
			}
		}
	}
	return best
}

// decodeMainFeed decodes the main-feed metrics block, field 14 of a
// power-metrics frame, one level deeper than circuit blocks (spec §4.8.4).
func decodeMainFeed(data []byte) circuitMetrics {
	top := wire.Parse(data)
	mainData := top.GetBytes(14)
	if mainData == nil {
		return circuitMetrics{}
	}

	var m circuitMetrics
	main := wire.Parse(mainData)

	if legA := main.GetBytes(1); legA != nil {
		la := wire.Parse(legA)
		if powerStats := la.GetBytes(3); powerStats != nil {
			m.powerW = float64(extractDeepestValue(powerStats, 3)) / 2000.0
		}
		if voltageStats := la.GetBytes(2); voltageStats != nil {
			vs := wire.Parse(voltageStats)
			if f2 := vs.GetBytes(2); f2 != nil {
				inner := wire.Parse(f2)
				if v := inner.GetInt(3, 0); v > 0 {
					m.voltageAV = float64(v) / 1000.0
				}
			}
		}
		if freqStats := la.GetBytes(4); freqStats != nil {
			ff := wire.Parse(freqStats)
			if v := ff.GetInt(3, 0); v > 0 {
				m.frequencyHz = float64(v) / 1000.0
			}
		}
	}

	if legB := main.GetBytes(2); legB != nil {
		lb := wire.Parse(legB)
		if powerStats := lb.GetBytes(3); powerStats != nil {
			if lbPower := float64(extractDeepestValue(powerStats, 3)) / 2000.0; lbPower > 0 {
				m.powerW += lbPower
			}
		}
		if voltageStats := lb.GetBytes(2); voltageStats != nil {
			vs := wire.Parse(voltageStats)
			if f2 := vs.GetBytes(2); f2 != nil {
				inner := wire.Parse(f2)
				if v := inner.GetInt(3, 0); v > 0 {
					m.voltageBV = float64(v) / 1000.0
				}
			}
		}
	}

	if m.voltageBV > 0 {
		m.voltageV = m.voltageAV + m.voltageBV
	} else {
		m.voltageV = m.voltageAV * 2
	}
	if m.voltageV > 0 {
		m.currentA = m.powerW / m.voltageV
	}
	m.isOn = true
	return m
}
