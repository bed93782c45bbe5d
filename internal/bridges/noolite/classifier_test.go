package noolite

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nerrad567/noolite-bridge/internal/device"
	"github.com/nerrad567/noolite-bridge/internal/journal"
	"github.com/nerrad567/noolite-bridge/internal/mtrf"
)

func classifierRegistry() *device.Registry {
	return device.NewRegistry([]device.Device{
		{Kind: device.KindSwitch, Channel: 1, Topic: "hall/light", StatusReportTopic: "hall/light/status", StatusReportChannels: []uint8{10}},
		{Kind: device.KindSwitch, Channel: 2, Topic: "kitchen/light", StatusReportChannels: []uint8{11}},
		{Kind: device.KindSwitch, Channel: 3, Topic: "porch/light", StatusReportTopic: "porch/light/status", StatusReportChannels: []uint8{12}},
		{Kind: device.KindOnOffSensor, Channel: 12, Topic: "porch/motion"},
		{Kind: device.KindOnOffSensor, Channel: 20, Topic: "hall/motion"},
		{Kind: device.KindTemperatureSensor, Channel: 4, Topic: "balcony/temperature"},
		{Kind: device.KindTemperatureHumiditySensor, Channel: 5, Topic: "bathroom/temperature", HumidityTopic: "bathroom/humidity"},
		{Kind: device.KindTemperatureHumiditySensor, Channel: 6, Topic: "cellar/temperature"},
		{Kind: device.KindOnOffSensor, Channel: 7, Topic: "garage/motion"},
	}, nil)
}

func rx(mode mtrf.Mode, cmd mtrf.Command, result mtrf.Result, ch uint8) mtrf.Reception {
	return mtrf.Reception{Mode: mode, Command: cmd, Result: result, Channel: ch}
}

func sendState(ch, state uint8) mtrf.Reception {
	rec := rx(mtrf.ModeTXF, mtrf.CommandSendState, mtrf.ResultSuccess, ch)
	rec.Data[2] = state
	return rec
}

func climate(ch uint8, temp float64, humidity *int) mtrf.Reception {
	rec := rx(mtrf.ModeRX, mtrf.CommandMicroclimateData, mtrf.ResultSuccess, ch)
	rec.Microclimate = &mtrf.Microclimate{Temperature: temp, Humidity: humidity, SensorType: mtrf.SensorPT112}
	return rec
}

func pct(v int) *int { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		rec         mtrf.Reception
		wantRule    string
		wantOutcome journal.Outcome
		wantPubs    []Publication
		wantErrors  int
		wantWarns   int
	}{
		{
			name:        "service mode ignored",
			rec:         rx(mtrf.ModeService, mtrf.CommandOff, mtrf.ResultSuccess, 0),
			wantRule:    "service",
			wantOutcome: journal.OutcomeIgnored,
		},
		{
			name:        "service mode ignored whatever the result",
			rec:         rx(mtrf.ModeService, mtrf.CommandBind, mtrf.ResultError, 9),
			wantRule:    "service",
			wantOutcome: journal.OutcomeIgnored,
		},
		{
			name:        "rx brightness stop ignored",
			rec:         rx(mtrf.ModeRX, mtrf.CommandBrightnessStop, mtrf.ResultSuccess, 10),
			wantRule:    "brightness_stop",
			wantOutcome: journal.OutcomeIgnored,
		},
		{
			name:        "rxf brightness stop ignored",
			rec:         rx(mtrf.ModeRXF, mtrf.CommandBrightnessStop, mtrf.ResultSuccess, 10),
			wantRule:    "brightness_stop",
			wantOutcome: journal.OutcomeIgnored,
		},
		{
			name:        "rx on from status channel",
			rec:         rx(mtrf.ModeRX, mtrf.CommandOn, mtrf.ResultSuccess, 10),
			wantRule:    "rx_on",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"hall/light/status", "1"}},
		},
		{
			name:        "rxf temporary on reaches switch and sensor",
			rec:         rx(mtrf.ModeRXF, mtrf.CommandTemporarySwitchOn, mtrf.ResultSuccess, 12),
			wantRule:    "rx_on",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"porch/light/status", "1"}, {"porch/motion", "1"}},
		},
		{
			name:        "rx brightness up from sensor",
			rec:         rx(mtrf.ModeRX, mtrf.CommandBrightnessUp, mtrf.ResultSuccess, 20),
			wantRule:    "rx_on",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"hall/motion", "1"}},
		},
		{
			name:        "rx off from sensor",
			rec:         rx(mtrf.ModeRX, mtrf.CommandOff, mtrf.ResultSuccess, 20),
			wantRule:    "rx_off",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"hall/motion", "0"}},
		},
		{
			name:        "rxf brightness down from status channel",
			rec:         rx(mtrf.ModeRXF, mtrf.CommandBrightnessDown, mtrf.ResultSuccess, 10),
			wantRule:    "rx_off",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"hall/light/status", "0"}},
		},
		{
			name:        "rx on from switch without status topic is silent",
			rec:         rx(mtrf.ModeRX, mtrf.CommandOn, mtrf.ResultSuccess, 11),
			wantRule:    "rx_on",
			wantOutcome: journal.OutcomeUnresolved,
		},
		{
			name:        "rx on from unknown channel",
			rec:         rx(mtrf.ModeRX, mtrf.CommandOn, mtrf.ResultSuccess, 99),
			wantRule:    "rx_on",
			wantOutcome: journal.OutcomeUnresolved,
			wantErrors:  1,
		},
		{
			name:        "rx on from temperature sensor channel",
			rec:         rx(mtrf.ModeRX, mtrf.CommandOn, mtrf.ResultSuccess, 4),
			wantRule:    "rx_on",
			wantOutcome: journal.OutcomeUnresolved,
			wantErrors:  2, // kind mismatch, then nothing resolved
		},
		{
			name:        "txf on no response",
			rec:         rx(mtrf.ModeTXF, mtrf.CommandOn, mtrf.ResultNoResponse, 1),
			wantRule:    "txf_no_response",
			wantOutcome: journal.OutcomeNoResponse,
			wantWarns:   1,
		},
		{
			name:        "txf off no response",
			rec:         rx(mtrf.ModeTXF, mtrf.CommandOff, mtrf.ResultNoResponse, 1),
			wantRule:    "txf_no_response",
			wantOutcome: journal.OutcomeNoResponse,
			wantWarns:   1,
		},
		{
			name:        "txf send state on",
			rec:         sendState(1, 1),
			wantRule:    "tx_on",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"hall/light/status", "1"}},
		},
		{
			name:        "tx on confirmation",
			rec:         rx(mtrf.ModeTX, mtrf.CommandOn, mtrf.ResultSuccess, 1),
			wantRule:    "tx_on",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"hall/light/status", "1"}},
		},
		{
			name:        "txf send state off",
			rec:         sendState(3, 0),
			wantRule:    "tx_off",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"porch/light/status", "0"}},
		},
		{
			name:        "tx off confirmation",
			rec:         rx(mtrf.ModeTX, mtrf.CommandOff, mtrf.ResultSuccess, 1),
			wantRule:    "tx_off",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"hall/light/status", "0"}},
		},
		{
			name:        "tx state for switch without status topic",
			rec:         rx(mtrf.ModeTX, mtrf.CommandOn, mtrf.ResultSuccess, 2),
			wantRule:    "tx_on",
			wantOutcome: journal.OutcomeUnresolved,
			wantErrors:  1,
		},
		{
			name:        "tx state for unknown channel",
			rec:         sendState(50, 1),
			wantRule:    "tx_on",
			wantOutcome: journal.OutcomeUnresolved,
			wantErrors:  1,
		},
		{
			name:        "cold balcony turns heating on",
			rec:         climate(4, 19.4, nil),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"balcony/temperature", "19.4"}, {HeatingControlTopic, "1"}},
		},
		{
			name:        "warm balcony turns heating off",
			rec:         climate(4, 21.0, nil),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"balcony/temperature", "21.0"}, {HeatingControlTopic, "0"}},
		},
		{
			name:        "exactly at heating threshold is off",
			rec:         climate(4, 20.0, nil),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"balcony/temperature", "20.0"}, {HeatingControlTopic, "0"}},
		},
		{
			name:        "negative temperature",
			rec:         climate(4, -4.2, nil),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"balcony/temperature", "-4.2"}, {HeatingControlTopic, "1"}},
		},
		{
			name:        "humid bathroom turns ventilation on",
			rec:         climate(5, 23.5, pct(55)),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomePublished,
			wantPubs: []Publication{
				{"bathroom/temperature", "23.5"},
				{"bathroom/humidity", "55"},
				{VentilationControlTopic, "1"},
			},
		},
		{
			name:        "dry bathroom turns ventilation off",
			rec:         climate(5, 23.5, pct(40)),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomePublished,
			wantPubs: []Publication{
				{"bathroom/temperature", "23.5"},
				{"bathroom/humidity", "40"},
				{VentilationControlTopic, "0"},
			},
		},
		{
			name:        "exactly at ventilation threshold is off",
			rec:         climate(5, 18.0, pct(50)),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomePublished,
			wantPubs: []Publication{
				{"bathroom/temperature", "18.0"},
				{"bathroom/humidity", "50"},
				{VentilationControlTopic, "0"},
			},
		},
		{
			name:        "humidity sensor without humidity topic",
			rec:         climate(6, 12.0, pct(60)),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"cellar/temperature", "12.0"}},
			wantErrors:  1,
		},
		{
			name:        "humidity from temperature-only sensor",
			rec:         climate(4, 19.0, pct(70)),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomePublished,
			wantPubs:    []Publication{{"balcony/temperature", "19.0"}, {HeatingControlTopic, "1"}},
			wantErrors:  1,
		},
		{
			name:        "microclimate from on/off sensor channel",
			rec:         climate(7, 19.0, nil),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomeUnresolved,
			wantErrors:  2, // kind mismatch, then no temperature sensor
		},
		{
			name:        "microclimate from unknown channel with humidity",
			rec:         climate(30, 19.0, pct(45)),
			wantRule:    "microclimate",
			wantOutcome: journal.OutcomeUnresolved,
			wantErrors:  2, // temperature and humidity each reported
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			c := NewClassifier(classifierRegistry(), true, logger)

			got, err := c.Classify(tt.rec)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got.Rule != tt.wantRule {
				t.Errorf("Rule = %q, want %q", got.Rule, tt.wantRule)
			}
			if got.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", got.Outcome, tt.wantOutcome)
			}
			if diff := cmp.Diff(tt.wantPubs, got.Publications, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("publications mismatch (-want +got):\n%s", diff)
			}
			if n := logger.count("error"); n != tt.wantErrors {
				t.Errorf("logged %d errors, want %d", n, tt.wantErrors)
			}
			if n := logger.count("warn"); n != tt.wantWarns {
				t.Errorf("logged %d warnings, want %d", n, tt.wantWarns)
			}
		})
	}
}

func TestClassifyIgnoredRowsAreSilent(t *testing.T) {
	logger := &recordingLogger{}
	c := NewClassifier(classifierRegistry(), true, logger)

	for _, rec := range []mtrf.Reception{
		rx(mtrf.ModeService, mtrf.CommandOff, mtrf.ResultSuccess, 0),
		rx(mtrf.ModeRX, mtrf.CommandBrightnessStop, mtrf.ResultSuccess, 99),
	} {
		if _, err := c.Classify(rec); err != nil {
			t.Fatalf("Classify(%s) error = %v", rec, err)
		}
	}
	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.lines) != 0 {
		t.Errorf("ignored receptions logged %v", logger.lines)
	}
}

func TestClassifyStatusChannelOnlySwitch(t *testing.T) {
	// Channel 10 is a status channel of switch 1 and nothing else: only the
	// switch's status topic is published and no sensor error is raised.
	logger := &recordingLogger{}
	c := NewClassifier(classifierRegistry(), true, logger)

	got, err := c.Classify(rx(mtrf.ModeRX, mtrf.CommandOn, mtrf.ResultSuccess, 10))
	if err != nil {
		t.Fatal(err)
	}
	want := []Publication{{"hall/light/status", "1"}}
	if diff := cmp.Diff(want, got.Publications); diff != "" {
		t.Errorf("publications mismatch (-want +got):\n%s", diff)
	}
	if logger.count("error") != 0 {
		t.Errorf("logged %d errors, want 0", logger.count("error"))
	}
}

func TestClassifyUnclassified(t *testing.T) {
	tests := []struct {
		name string
		rec  mtrf.Reception
	}{
		{"txf on success", rx(mtrf.ModeTXF, mtrf.CommandOn, mtrf.ResultSuccess, 1)},
		{"txf send state other discriminator", sendState(1, 2)},
		{"tx send state", func() mtrf.Reception {
			r := sendState(1, 1)
			r.Mode = mtrf.ModeTX
			return r
		}()},
		{"tx on no response", rx(mtrf.ModeTX, mtrf.CommandOn, mtrf.ResultNoResponse, 1)},
		{"rx on error result", rx(mtrf.ModeRX, mtrf.CommandOn, mtrf.ResultError, 10)},
		{"rx bind", rx(mtrf.ModeRX, mtrf.CommandBind, mtrf.ResultSuccess, 10)},
		{"rxf microclimate", func() mtrf.Reception {
			r := climate(4, 19, nil)
			r.Mode = mtrf.ModeRXF
			return r
		}()},
		{"rx microclimate without payload", rx(mtrf.ModeRX, mtrf.CommandMicroclimateData, mtrf.ResultSuccess, 4)},
		{"rx battery low", rx(mtrf.ModeRX, mtrf.CommandBatteryLow, mtrf.ResultSuccess, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(classifierRegistry(), true, nil)

			got, err := c.Classify(tt.rec)
			if !errors.Is(err, ErrUnclassifiedEvent) {
				t.Fatalf("Classify() error = %v, want ErrUnclassifiedEvent", err)
			}
			if got.Outcome != journal.OutcomeUnclassified {
				t.Errorf("Outcome = %q, want unclassified", got.Outcome)
			}
			if len(got.Publications) != 0 {
				t.Errorf("Publications = %v, want none", got.Publications)
			}
		})
	}
}

func TestClassifyAutomationDisabled(t *testing.T) {
	c := NewClassifier(classifierRegistry(), false, nil)

	got, err := c.Classify(climate(4, 19.4, nil))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Publication{{"balcony/temperature", "19.4"}}, got.Publications); diff != "" {
		t.Errorf("publications mismatch (-want +got):\n%s", diff)
	}

	got, err = c.Classify(climate(5, 20.0, pct(80)))
	if err != nil {
		t.Fatal(err)
	}
	want := []Publication{{"bathroom/temperature", "20.0"}, {"bathroom/humidity", "80"}}
	if diff := cmp.Diff(want, got.Publications); diff != "" {
		t.Errorf("publications mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyObservations(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClassifier(classifierRegistry(), true, nil)
	c.now = func() time.Time { return fixed }

	got, err := c.Classify(climate(5, 23.5, pct(55)))
	if err != nil {
		t.Fatal(err)
	}
	temp, on := 23.5, true
	want := []Observation{
		{Channel: 5, Kind: device.KindTemperatureHumiditySensor, Topic: "bathroom/temperature", Temperature: &temp, Time: fixed},
		{Channel: 5, Kind: device.KindTemperatureHumiditySensor, Topic: "bathroom/humidity", Humidity: pct(55), Time: fixed},
	}
	if diff := cmp.Diff(want, got.Observations); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}

	got, err = c.Classify(rx(mtrf.ModeRX, mtrf.CommandOn, mtrf.ResultSuccess, 10))
	if err != nil {
		t.Fatal(err)
	}
	want = []Observation{
		{Channel: 1, Kind: device.KindSwitch, Topic: "hall/light/status", On: &on, Time: fixed},
	}
	if diff := cmp.Diff(want, got.Observations); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}
}

func TestClassificationDetail(t *testing.T) {
	c := NewClassifier(classifierRegistry(), true, nil)

	got, _ := c.Classify(climate(6, 12.0, pct(60)))
	want := "cellar/temperature=12.0; no humidity topic for channel 6"
	if got.Detail() != want {
		t.Errorf("Detail() = %q, want %q", got.Detail(), want)
	}
}
