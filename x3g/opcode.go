package x3g

import "strconv"

// Opcode is the first payload byte of every command. Values below 128 are
// host queries answered immediately, the rest are queued by the device.
type Opcode byte

const (
	OpVersion           Opcode = 0
	OpInit              Opcode = 1
	OpBufferSize        Opcode = 2
	OpClearBuffer       Opcode = 3
	OpAbort             Opcode = 7
	OpPauseResume       Opcode = 8
	OpToolQuery         Opcode = 10
	OpIsReady           Opcode = 11
	OpReadEEPROM        Opcode = 12
	OpWriteEEPROM       Opcode = 13
	OpCaptureToFile     Opcode = 14
	OpEndCapture        Opcode = 15
	OpPlayBackCapture   Opcode = 16
	OpReset             Opcode = 17
	OpNextFilename      Opcode = 18
	OpBuildName         Opcode = 20
	OpExtendedPosition  Opcode = 21
	OpExtendedStop      Opcode = 22
	OpMotherboardStatus Opcode = 23
	OpBuildStatistics   Opcode = 24
	OpAdvancedVersion   Opcode = 27

	OpHomeMin            Opcode = 131
	OpHomeMax            Opcode = 132
	OpDelay              Opcode = 133
	OpChangeTool         Opcode = 134
	OpWaitForTool        Opcode = 135
	OpToolAction         Opcode = 136
	OpSteppers           Opcode = 137
	OpQueuePoint         Opcode = 139
	OpSetPosition        Opcode = 140
	OpWaitForPlatform    Opcode = 141
	OpQueueNewPoint      Opcode = 142
	OpStoreHome          Opcode = 143
	OpRecallHome         Opcode = 144
	OpSetPot             Opcode = 145
	OpSetLED             Opcode = 146
	OpBeep               Opcode = 147
	OpWaitForButton      Opcode = 148
	OpDisplayMessage     Opcode = 149
	OpBuildPercent       Opcode = 150
	OpQueueSong          Opcode = 151
	OpFactoryDefaults    Opcode = 152
	OpStartBuild         Opcode = 153
	OpEndBuild           Opcode = 154
	OpQueueExtendedPoint Opcode = 155
	OpAcceleration       Opcode = 156
	OpStreamVersion      Opcode = 157
	OpPauseAtZ           Opcode = 158
)

// IsQuery returns true for commands the device answers immediately
// instead of queueing.
func (op Opcode) IsQuery() bool { return op&0x80 == 0 }

var opNames = map[Opcode]string{
	OpVersion:            "version",
	OpInit:               "init",
	OpBufferSize:         "buffer size",
	OpClearBuffer:        "clear buffer",
	OpAbort:              "abort",
	OpPauseResume:        "pause/resume",
	OpToolQuery:          "tool query",
	OpIsReady:            "is ready",
	OpReadEEPROM:         "read eeprom",
	OpWriteEEPROM:        "write eeprom",
	OpCaptureToFile:      "capture to file",
	OpEndCapture:         "end capture",
	OpPlayBackCapture:    "play back capture",
	OpReset:              "reset",
	OpNextFilename:       "next filename",
	OpBuildName:          "build name",
	OpExtendedPosition:   "extended position",
	OpExtendedStop:       "extended stop",
	OpMotherboardStatus:  "motherboard status",
	OpBuildStatistics:    "build statistics",
	OpAdvancedVersion:    "advanced version",
	OpHomeMin:            "home minimum",
	OpHomeMax:            "home maximum",
	OpDelay:              "delay",
	OpChangeTool:         "change tool",
	OpWaitForTool:        "wait for tool",
	OpToolAction:         "tool action",
	OpSteppers:           "steppers",
	OpQueuePoint:         "queue point",
	OpSetPosition:        "set position",
	OpWaitForPlatform:    "wait for platform",
	OpQueueNewPoint:      "queue new point",
	OpStoreHome:          "store home",
	OpRecallHome:         "recall home",
	OpSetPot:             "set pot",
	OpSetLED:             "set led",
	OpBeep:               "beep",
	OpWaitForButton:      "wait for button",
	OpDisplayMessage:     "display message",
	OpBuildPercent:       "build percent",
	OpQueueSong:          "queue song",
	OpFactoryDefaults:    "factory defaults",
	OpStartBuild:         "start build",
	OpEndBuild:           "end build",
	OpQueueExtendedPoint: "queue extended point",
	OpAcceleration:       "acceleration",
	OpStreamVersion:      "stream version",
	OpPauseAtZ:           "pause at z",
}

func (op Opcode) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "opcode " + strconv.Itoa(int(op))
}

// ToolQueryCode selects the sub-command of OpToolQuery.
type ToolQueryCode byte

const (
	ToolVersion              ToolQueryCode = 0
	ToolTemperature          ToolQueryCode = 2
	ToolIsReady              ToolQueryCode = 22
	ToolPlatformTemperature  ToolQueryCode = 30
	ToolTargetTemperature    ToolQueryCode = 32
	ToolPlatformTarget       ToolQueryCode = 33
	ToolIsPlatformReady      ToolQueryCode = 35
	ToolStatus               ToolQueryCode = 36
	ToolPIDState             ToolQueryCode = 37
)

// ToolActionCode selects the sub-command of OpToolAction.
type ToolActionCode byte

const (
	ActionSetTemperature         ToolActionCode = 3
	ActionFan                    ToolActionCode = 12
	ActionValve                  ToolActionCode = 13
	ActionABP                    ToolActionCode = 27
	ActionSetPlatformTemperature ToolActionCode = 31
)

// HostVersion is reported to the device by version queries.
const HostVersion = 50
