package watchmgr

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/dmdmdm-nz/reachd/pkg/reachability"
)

// Definition names one target the daemon watches.
type Definition struct {
	Name    string
	Kind    reachability.TargetKind
	Host    string
	Address netip.AddrPort
}

// InternetDefinition and LocalWiFiDefinition are the two built-in targets.
func InternetDefinition() Definition {
	return Definition{Name: "internet", Kind: reachability.TargetInternet}
}

func LocalWiFiDefinition() Definition {
	return Definition{Name: "wifi", Kind: reachability.TargetLocalWiFi}
}

func (d Definition) newMonitor(opts []reachability.Option) (*reachability.Monitor, error) {
	switch d.Kind {
	case reachability.TargetHost:
		return reachability.ForHostName(d.Host, opts...)
	case reachability.TargetAddress:
		return reachability.ForAddress(d.Address, opts...)
	case reachability.TargetInternet:
		return reachability.ForInternetConnection(opts...)
	case reachability.TargetLocalWiFi:
		return reachability.ForLocalWiFi(opts...)
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", reachability.ErrInvalidTarget, d.Kind)
	}
}

// TargetState is the published view of one watched target.
type TargetState struct {
	Name               string              `json:"name"`
	Target             string              `json:"target"`
	Status             reachability.Status `json:"status"`
	LastStatus         reachability.Status `json:"lastStatus"`
	ConnectionRequired bool                `json:"connectionRequired"`
	Flags              string              `json:"flags"`
	Notifying          bool                `json:"notifying"`
	// Changes counts delivered change notifications.
	Changes int `json:"changes"`
	// Since is when Status last moved.
	Since   time.Time `json:"since"`
	Updated time.Time `json:"updated"`
}

func stateOf(name string, m *reachability.Monitor) TargetState {
	flags := m.Flags()
	return TargetState{
		Name:               name,
		Target:             m.Target().String(),
		Status:             m.CurrentStatus(),
		LastStatus:         m.LastStatus(),
		ConnectionRequired: flags.Has(reachability.FlagConnectionRequired),
		Flags:              flags.String(),
		Notifying:          m.IsNotifying(),
	}
}
