package device

import (
	"fmt"
	"sync"
)

// PairingState is the screen's position in the pairing lifecycle.
type PairingState int

// Pairing states.
const (
	StateUnidentified PairingState = iota
	StateUnpaired
	StatePaired
)

// String returns the state name used in logs and the display feed.
func (s PairingState) String() string {
	switch s {
	case StateUnidentified:
		return "unidentified"
	case StateUnpaired:
		return "unpaired"
	case StatePaired:
		return "paired"
	default:
		return fmt.Sprintf("PairingState(%d)", int(s))
	}
}

// Status is a snapshot of the pairing state machine.
type Status struct {
	State       PairingState
	DeviceID    string
	PairingCode string
	LocationID  string
}

// CodeGenerator produces pairing codes. NewPairingCode is the default.
type CodeGenerator func() (string, error)

// Pairing is the device's pairing state machine. It never initiates a
// pairing itself; Assign and Unassign are driven by the observed device
// document. All methods are safe for concurrent use.
type Pairing struct {
	mu       sync.Mutex
	status   Status
	newCode  CodeGenerator
	handlers []func(Status)
}

// NewPairing returns a machine in StateUnidentified. A nil gen uses
// NewPairingCode.
func NewPairing(gen CodeGenerator) *Pairing {
	if gen == nil {
		gen = NewPairingCode
	}
	return &Pairing{newCode: gen}
}

// OnChange registers fn to be called after every state or code change.
func (p *Pairing) OnChange(fn func(Status)) {
	p.mu.Lock()
	p.handlers = append(p.handlers, fn)
	p.mu.Unlock()
}

// Status returns the current snapshot.
func (p *Pairing) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Identify moves Unidentified to Unpaired with a fresh pairing code.
// Calling it again is a no-op.
func (p *Pairing) Identify(deviceID string) error {
	p.mu.Lock()
	if p.status.State != StateUnidentified {
		p.mu.Unlock()
		return nil
	}
	code, err := p.newCode()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.status = Status{State: StateUnpaired, DeviceID: deviceID, PairingCode: code}
	st, handlers := p.status, p.handlers
	p.mu.Unlock()

	emit(handlers, st)
	return nil
}

// Assign records that the device document carries locationID.
// Unpaired becomes Paired; a Paired device moves to the new location.
// Assigning the current location again changes nothing.
//
// Returns:
//   - bool: true if the status changed
//   - error: ErrNotIdentified before Identify
func (p *Pairing) Assign(locationID string) (bool, error) {
	if locationID == "" {
		return p.Unassign()
	}

	p.mu.Lock()
	if p.status.State == StateUnidentified {
		p.mu.Unlock()
		return false, ErrNotIdentified
	}
	if p.status.State == StatePaired && p.status.LocationID == locationID {
		p.mu.Unlock()
		return false, nil
	}
	p.status.State = StatePaired
	p.status.LocationID = locationID
	st, handlers := p.status, p.handlers
	p.mu.Unlock()

	emit(handlers, st)
	return true, nil
}

// Unassign records that the device document lost its location.
// Paired returns to Unpaired with a freshly generated code; Unpaired
// stays as it is.
//
// Returns:
//   - bool: true if the status changed
//   - error: ErrNotIdentified before Identify, or a code generation error
func (p *Pairing) Unassign() (bool, error) {
	p.mu.Lock()
	switch p.status.State {
	case StateUnidentified:
		p.mu.Unlock()
		return false, ErrNotIdentified
	case StateUnpaired:
		p.mu.Unlock()
		return false, nil
	}

	code, err := p.newCode()
	if err != nil {
		p.mu.Unlock()
		return false, err
	}
	p.status.State = StateUnpaired
	p.status.LocationID = ""
	p.status.PairingCode = code
	st, handlers := p.status, p.handlers
	p.mu.Unlock()

	emit(handlers, st)
	return true, nil
}

func emit(handlers []func(Status), st Status) {
	for _, fn := range handlers {
		fn(st)
	}
}
