package domain

import "slices"

// Device selects where the recognition model runs.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

const (
	BackendWhisperCPP = "whisper.cpp"
	BackendRemote     = "remote"
)

const (
	DefaultModelName = "base"
	DefaultLanguage  = "zh"
	DefaultDevice    = DeviceCPU
)

// ModelNames lists the selectable whisper model identifiers in menu order.
var ModelNames = []string{"large-v3", "large-v1", "medium", "base", "small"}

// Languages lists the selectable language codes in menu order.
var Languages = []string{"en", "zh", "es", "fr", "de", "ja", "ko"}

// Devices lists the selectable inference devices.
var Devices = []Device{DeviceCPU, DeviceCUDA}

// IsKnownModel reports whether name is one of ModelNames.
func IsKnownModel(name string) bool {
	return slices.Contains(ModelNames, name)
}

// IsKnownLanguage reports whether code is one of Languages.
func IsKnownLanguage(code string) bool {
	return slices.Contains(Languages, code)
}

// IsKnownDevice reports whether d is one of Devices.
func IsKnownDevice(d Device) bool {
	return slices.Contains(Devices, d)
}
