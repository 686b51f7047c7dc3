package upgrade

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Phase is the stage of a controller upgrade a broadcast is sent for.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// ParsePhase accepts "pre" or "post" in any case.
func ParsePhase(s string) (Phase, error) {
	switch Phase(strings.ToLower(strings.TrimSpace(s))) {
	case PhasePre:
		return PhasePre, nil
	case PhasePost:
		return PhasePost, nil
	default:
		return "", fmt.Errorf("must specify %q or %q as the upgrade phase, got %q", PhasePre, PhasePost, s)
	}
}

// HookURL returns the upgrade hook URL of the controller pod at ip.
func HookURL(ip string, port int32, prefix string, phase Phase) string {
	host := net.JoinHostPort(ip, strconv.Itoa(int(port)))
	return fmt.Sprintf("https://%s%s/no-crd/helm-hooks/%s-upgrade", host, prefix, phase)
}
