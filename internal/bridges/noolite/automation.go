package noolite

// Legacy automation rules. They stand in for a proper automation layer and
// are enabled with bridge.legacy_automation. Removing this file and the two
// call sites in the microclimate handler removes them entirely.
const (
	// HeatingControlTopic receives "1" while a temperature-only sensor reads
	// below HeatingThreshold.
	HeatingControlTopic = "balcony/heating"
	HeatingThreshold    = 20.0

	// VentilationControlTopic receives "1" while a humidity sensor reads
	// above VentilationThreshold.
	VentilationControlTopic = "bathroom/ventilation"
	VentilationThreshold    = 50
)

// heatingRule switches heating on below the threshold.
func heatingRule(celsius float64) Publication {
	return Publication{Topic: HeatingControlTopic, Payload: statePayload(celsius < HeatingThreshold)}
}

// ventilationRule switches ventilation on above the threshold.
func ventilationRule(humidity int) Publication {
	return Publication{Topic: VentilationControlTopic, Payload: statePayload(humidity > VentilationThreshold)}
}
