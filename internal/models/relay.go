package models

// RelayState is the binary state of one actuator.
type RelayState string

const (
	RelayOn  RelayState = "on"
	RelayOff RelayState = "off"
)

// Valid reports whether s is one of the two defined states.
func (s RelayState) Valid() bool {
	return s == RelayOn || s == RelayOff
}

// RelayCount is the number of independently switchable relays a
// device exposes.
const RelayCount = 4

// RelayStates holds the four per-relay states as the backend encodes
// them.
type RelayStates struct {
	Relay1 RelayState `json:"relay1"`
	Relay2 RelayState `json:"relay2"`
	Relay3 RelayState `json:"relay3"`
	Relay4 RelayState `json:"relay4"`
}

// Valid reports whether every relay carries a defined state.
func (r RelayStates) Valid() bool {
	return r.Relay1.Valid() && r.Relay2.Valid() && r.Relay3.Valid() && r.Relay4.Valid()
}

// Relay returns the state of relay n (1-based). Out-of-range n
// returns "".
func (r RelayStates) Relay(n int) RelayState {
	switch n {
	case 1:
		return r.Relay1
	case 2:
		return r.Relay2
	case 3:
		return r.Relay3
	case 4:
		return r.Relay4
	}
	return ""
}

// SetRelay returns a copy of r with relay n set to state.
func (r RelayStates) SetRelay(n int, state RelayState) RelayStates {
	switch n {
	case 1:
		r.Relay1 = state
	case 2:
		r.Relay2 = state
	case 3:
		r.Relay3 = state
	case 4:
		r.Relay4 = state
	}
	return r
}

// RelayBank is the relay snapshot for one device.
type RelayBank struct {
	DeviceID string      `json:"deviceId"`
	Relays   RelayStates `json:"relays"`
}
