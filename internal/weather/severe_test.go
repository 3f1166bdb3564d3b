package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSevere(t *testing.T) {
	severe := []string{
		"Tornado Warning",
		"Flash Flood Warning",
		"Severe Thunderstorm Warning",
		"Flood Warning",
		"Particularly Dangerous Situation",
		"TORNADO EMERGENCY",
		"Extreme Wind Emergency",
	}
	for _, event := range severe {
		assert.True(t, IsSevere(event), event)
	}

	mild := []string{
		"Heat Advisory",
		"Wind Advisory",
		"Frost Advisory",
		"Winter Weather Advisory",
		"Special Weather Statement",
	}
	for _, event := range mild {
		assert.False(t, IsSevere(event), event)
	}
}

func TestFilterAlerts(t *testing.T) {
	alerts := []Alert{
		{Event: "Tornado Warning"},
		{Event: "Heat Advisory"},
		{Event: "Flood Watch"},
	}

	assert.Len(t, FilterAlerts(alerts, nil), 3)

	kept := FilterAlerts(alerts, IsSevere)
	assert.Equal(t, []Alert{{Event: "Tornado Warning"}, {Event: "Flood Watch"}}, kept)

	custom := KeywordPredicate("HEAT")
	assert.Equal(t, []Alert{{Event: "Heat Advisory"}}, FilterAlerts(alerts, custom))
}
