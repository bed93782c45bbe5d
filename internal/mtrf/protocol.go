package mtrf

import "fmt"

// Mode is the MODE byte of an MTRF-64 frame.
type Mode uint8

// Adapter modes.
const (
	ModeTX      Mode = 0 // nooLite transmit
	ModeRX      Mode = 1 // nooLite receive
	ModeTXF     Mode = 2 // nooLite-F transmit
	ModeRXF     Mode = 3 // nooLite-F receive
	ModeService Mode = 4
	ModeUpgrade Mode = 5
)

func (m Mode) String() string {
	switch m {
	case ModeTX:
		return "TX"
	case ModeRX:
		return "RX"
	case ModeTXF:
		return "TXF"
	case ModeRXF:
		return "RXF"
	case ModeService:
		return "Service"
	case ModeUpgrade:
		return "Upgrade"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseTxMode maps the adapter.tx_mode config value to a transmit mode.
func ParseTxMode(s string) (Mode, error) {
	switch s {
	case "txf", "":
		return ModeTXF, nil
	case "tx":
		return ModeTX, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTxMode, s)
	}
}

// Action is the CTR byte of a request frame.
type Action uint8

// Request actions.
const (
	ActionSendCommand          Action = 0
	ActionSendBroadcastCommand Action = 1
	ActionReadAnswer           Action = 2
	ActionStartBinding         Action = 3
	ActionStopBinding          Action = 4
	ActionClearChannel         Action = 5
	ActionClearAllChannels     Action = 6
	ActionUnbindAddress        Action = 7
	ActionSendToAddress        Action = 8
)

// Result is the CTR byte of a response frame.
type Result uint8

// Response results.
const (
	ResultSuccess    Result = 0
	ResultNoResponse Result = 1
	ResultError      Result = 2
	ResultBind       Result = 3
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultNoResponse:
		return "NoResponse"
	case ResultError:
		return "Error"
	case ResultBind:
		return "BindSuccess"
	default:
		return fmt.Sprintf("Result(%d)", uint8(r))
	}
}

// Command is the CMD byte of a frame.
type Command uint8

// nooLite commands.
const (
	CommandOff                  Command = 0
	CommandBrightnessDown       Command = 1
	CommandOn                   Command = 2
	CommandBrightnessUp         Command = 3
	CommandSwitch               Command = 4
	CommandBrightnessBack       Command = 5
	CommandSetBrightness        Command = 6
	CommandLoadPreset           Command = 7
	CommandSavePreset           Command = 8
	CommandUnbind               Command = 9
	CommandBrightnessStop       Command = 10
	CommandBrightnessStepDown   Command = 11
	CommandBrightnessStepUp     Command = 12
	CommandBrightnessRegulation Command = 13
	CommandBind                 Command = 15
	CommandRollColour           Command = 16
	CommandSwitchColour         Command = 17
	CommandSwitchMode           Command = 18
	CommandSpeedModeBack        Command = 19
	CommandBatteryLow           Command = 20
	CommandMicroclimateData     Command = 21
	CommandTemporarySwitchOn    Command = 25
	CommandModes                Command = 26
	CommandReadState            Command = 128
	CommandWriteState           Command = 129
	CommandSendState            Command = 130
	CommandService              Command = 131
	CommandClearMemory          Command = 132
)

var commandNames = map[Command]string{
	CommandOff:                  "Off",
	CommandBrightnessDown:       "BrightnessDown",
	CommandOn:                   "On",
	CommandBrightnessUp:         "BrightnessUp",
	CommandSwitch:               "Switch",
	CommandBrightnessBack:       "BrightnessBack",
	CommandSetBrightness:        "SetBrightness",
	CommandLoadPreset:           "LoadPreset",
	CommandSavePreset:           "SavePreset",
	CommandUnbind:               "Unbind",
	CommandBrightnessStop:       "BrightnessStop",
	CommandBrightnessStepDown:   "BrightnessStepDown",
	CommandBrightnessStepUp:     "BrightnessStepUp",
	CommandBrightnessRegulation: "BrightnessRegulation",
	CommandBind:                 "Bind",
	CommandRollColour:           "RollColour",
	CommandSwitchColour:         "SwitchColour",
	CommandSwitchMode:           "SwitchMode",
	CommandSpeedModeBack:        "SpeedModeBack",
	CommandBatteryLow:           "BatteryLow",
	CommandMicroclimateData:     "MicroclimateData",
	CommandTemporarySwitchOn:    "TemporarySwitchOn",
	CommandModes:                "Modes",
	CommandReadState:            "ReadState",
	CommandWriteState:           "WriteState",
	CommandSendState:            "SendState",
	CommandService:              "Service",
	CommandClearMemory:          "ClearMemory",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}
