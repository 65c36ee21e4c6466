package model

import (
	"fmt"
	"strings"
)

// Mode is the monitoring scenario the deployment is configured for.
// It is informational and does not affect sampling or classification.
type Mode string

const (
	ModeTraffic     Mode = "traffic"
	ModeCampus      Mode = "campus"
	ModeAnimal      Mode = "animal"
	ModeParking     Mode = "parking"
	ModeAgriculture Mode = "agriculture"
	ModeAnomaly     Mode = "anomaly"
)

// Modes lists every monitoring mode in display order.
var Modes = []Mode{ModeTraffic, ModeCampus, ModeAnimal, ModeParking, ModeAgriculture, ModeAnomaly}

var modeTitles = map[Mode]string{
	ModeTraffic:     "Traffic Monitoring",
	ModeCampus:      "Campus Crowd",
	ModeAnimal:      "Animal Detection",
	ModeParking:     "Parking Analysis",
	ModeAgriculture: "Agriculture",
	ModeAnomaly:     "Anomaly Detection",
}

// Title returns the human readable mode name.
func (m Mode) Title() string {
	if t, ok := modeTitles[m]; ok {
		return t
	}
	return string(m)
}

// ParseMode validates a mode identifier.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := modeTitles[m]; !ok {
		return "", fmt.Errorf("unknown monitoring mode %q", s)
	}
	return m, nil
}
