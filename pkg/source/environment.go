package source

import (
	"runtime"

	"github.com/offlinefirst/keytrace/pkg/permissions"
)

// Environment summarises input hook backend support for one device.
type Environment struct {
	Device     Device
	Provider   string
	Available  bool
	Permission string
	Message    string
	Guidance   string
}

const providerStub = "stub"

// DetectEnvironment reports input hook support for the given device. The
// OS hook is an external collaborator and the shipped sources replay
// synthetic timelines, so the provider is always the stub; on darwin the
// hook permissions still gate startup because the collaborator needs them.
// The keyboard hook needs input monitoring, the mouse hook accessibility
// trust.
func DetectEnvironment(device Device) Environment {
	var probe permissions.ProbeResult
	switch device {
	case DeviceMouse:
		probe = permissions.ProbeAccessibility(nil)
	default:
		probe = permissions.ProbeInputMonitoring(nil)
	}

	env := Environment{
		Device:     device,
		Provider:   providerStub,
		Permission: probe.StatusString(),
		Message:    probe.Message,
		Guidance:   probe.Guidance,
		Available:  true,
	}

	if runtime.GOOS == "darwin" {
		env.Available = probe.Status != permissions.StatusDenied
		if !env.Available && env.Message == "" {
			env.Message = "input permission missing"
		}
	} else {
		env.Permission = "not_applicable"
		if env.Message == "" {
			env.Message = "synthetic input hook stub"
		}
	}

	return env
}
