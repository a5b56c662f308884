package reachability

import (
	"fmt"
	"strings"
)

// Status is the coarse reachability of a target.
type Status int

const (
	NotReachable Status = iota
	ReachableViaWiFi
	ReachableViaWWAN
)

var statusNames = map[Status]string{
	NotReachable:     "not-reachable",
	ReachableViaWiFi: "reachable-via-wifi",
	ReachableViaWWAN: "reachable-via-wwan",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Reachable reports whether s is anything other than NotReachable.
func (s Status) Reachable() bool { return s != NotReachable }

func (s Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Flags describe the path to a target the way the platform sees it.
type Flags uint32

const (
	// FlagTransientConnection marks a path over a temporary link such as PPP.
	FlagTransientConnection Flags = 1 << 0
	FlagReachable           Flags = 1 << 1
	// FlagConnectionRequired means a link must be brought up before traffic
	// will flow, for example a cellular radio that is not yet active.
	FlagConnectionRequired Flags = 1 << 2
	// FlagConnectionOnTraffic means the required connection comes up on its
	// own once traffic is sent.
	FlagConnectionOnTraffic Flags = 1 << 3
	// FlagInterventionRequired means the required connection needs user
	// input, such as a password.
	FlagInterventionRequired Flags = 1 << 4
	FlagConnectionOnDemand   Flags = 1 << 5
	FlagIsLocalAddress       Flags = 1 << 16
	FlagIsDirect             Flags = 1 << 17
	FlagIsWWAN               Flags = 1 << 18
)

func (f Flags) Has(flag Flags) bool { return f&flag == flag }

// String renders the flags in the fixed order W d l D i C c R t, with '-'
// for each flag that is not set.
func (f Flags) String() string {
	var b strings.Builder
	for _, entry := range []struct {
		flag Flags
		char byte
	}{
		{FlagIsWWAN, 'W'},
		{FlagIsDirect, 'd'},
		{FlagIsLocalAddress, 'l'},
		{FlagConnectionOnDemand, 'D'},
		{FlagInterventionRequired, 'i'},
		{FlagConnectionOnTraffic, 'C'},
		{FlagConnectionRequired, 'c'},
		{FlagReachable, 'R'},
		{FlagTransientConnection, 't'},
	} {
		if f.Has(entry.flag) {
			b.WriteByte(entry.char)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// StatusForFlags maps flags for a host, address or internet target to a
// Status. A WWAN path always reports ReachableViaWWAN, even when the
// connection still has to be established.
func StatusForFlags(f Flags) Status {
	if !f.Has(FlagReachable) {
		return NotReachable
	}

	status := NotReachable
	if !f.Has(FlagConnectionRequired) {
		status = ReachableViaWiFi
	}
	if (f.Has(FlagConnectionOnDemand) || f.Has(FlagConnectionOnTraffic)) && !f.Has(FlagInterventionRequired) {
		status = ReachableViaWiFi
	}
	if f.Has(FlagIsWWAN) {
		status = ReachableViaWWAN
	}
	return status
}

// LocalWiFiStatusForFlags maps flags for the local WiFi target: only a
// direct, reachable link counts.
func LocalWiFiStatusForFlags(f Flags) Status {
	if f.Has(FlagReachable) && f.Has(FlagIsDirect) {
		return ReachableViaWiFi
	}
	return NotReachable
}
