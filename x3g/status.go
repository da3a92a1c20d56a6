package x3g

import "fmt"

// Status is the first byte of every device response.
type Status byte

const (
	StatusGenericError    Status = 0x80
	StatusSuccess         Status = 0x81
	StatusBufferOverflow  Status = 0x82
	StatusCRCMismatch     Status = 0x83
	StatusQueryTooBig     Status = 0x84
	StatusUnsupported     Status = 0x85
	StatusDownstreamTO    Status = 0x87
	StatusToolLockTimeout Status = 0x88
	StatusCancelBuild     Status = 0x89
	StatusBotBuilding     Status = 0x8A
	StatusBotOverheat     Status = 0x8B
	StatusPacketTimeout   Status = 0x8C
)

var statusNames = map[Status]string{
	StatusGenericError:    "generic packet error",
	StatusSuccess:         "success",
	StatusBufferOverflow:  "buffer overflow",
	StatusCRCMismatch:     "checksum mismatch",
	StatusQueryTooBig:     "query packet too big",
	StatusUnsupported:     "command not supported or recognized",
	StatusDownstreamTO:    "timeout downstream",
	StatusToolLockTimeout: "timeout for tool lock",
	StatusCancelBuild:     "build cancelled",
	StatusBotBuilding:     "SD printing",
	StatusBotOverheat:     "printer reports overheat condition",
	StatusPacketTimeout:   "packet timeout",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("unknown status 0x%02x", byte(s))
}

// Retryable reports whether the same packet should simply be sent again.
func (s Status) Retryable() bool {
	switch s {
	case StatusQueryTooBig, StatusUnsupported, StatusDownstreamTO,
		StatusCancelBuild, StatusBotBuilding, StatusBotOverheat,
		StatusSuccess, StatusBufferOverflow:
		return false
	}
	return true
}
