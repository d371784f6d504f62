package device

import (
	"errors"
	"fmt"
	"testing"
)

// sequentialCodes returns codes 100001, 100002, ...
func sequentialCodes() CodeGenerator {
	n := 100000
	return func() (string, error) {
		n++
		return fmt.Sprintf("%06d", n), nil
	}
}

func TestPairingState_String(t *testing.T) {
	tests := []struct {
		state PairingState
		want  string
	}{
		{StateUnidentified, "unidentified"},
		{StateUnpaired, "unpaired"},
		{StatePaired, "paired"},
		{PairingState(9), "PairingState(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestPairing_Lifecycle(t *testing.T) {
	p := NewPairing(sequentialCodes())

	var changes []Status
	p.OnChange(func(st Status) { changes = append(changes, st) })

	if st := p.Status(); st.State != StateUnidentified {
		t.Fatalf("initial state = %v, want unidentified", st.State)
	}

	if _, err := p.Assign("store-1"); !errors.Is(err, ErrNotIdentified) {
		t.Errorf("Assign() before Identify error = %v, want ErrNotIdentified", err)
	}

	if err := p.Identify("scr_1"); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	st := p.Status()
	if st.State != StateUnpaired || st.PairingCode != "100001" || st.DeviceID != "scr_1" {
		t.Fatalf("after Identify = %+v", st)
	}

	// Identify again is a no-op
	if err := p.Identify("scr_other"); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if p.Status().DeviceID != "scr_1" {
		t.Error("second Identify must not change the device id")
	}

	changed, err := p.Assign("store-1")
	if err != nil || !changed {
		t.Fatalf("Assign() = %v, %v", changed, err)
	}
	if st := p.Status(); st.State != StatePaired || st.LocationID != "store-1" {
		t.Fatalf("after Assign = %+v", st)
	}

	changed, _ = p.Assign("store-1")
	if changed {
		t.Error("assigning the same location should not report a change")
	}

	changed, _ = p.Assign("store-2")
	if !changed || p.Status().LocationID != "store-2" {
		t.Errorf("reassign: changed=%v status=%+v", changed, p.Status())
	}

	changed, err = p.Unassign()
	if err != nil || !changed {
		t.Fatalf("Unassign() = %v, %v", changed, err)
	}
	st = p.Status()
	if st.State != StateUnpaired || st.LocationID != "" {
		t.Fatalf("after Unassign = %+v", st)
	}
	if st.PairingCode != "100002" {
		t.Errorf("Unassign should generate a fresh code, got %q", st.PairingCode)
	}

	changed, _ = p.Unassign()
	if changed {
		t.Error("Unassign while unpaired should not report a change")
	}

	// identify, assign, reassign, unassign
	if len(changes) != 4 {
		t.Errorf("got %d change notifications, want 4", len(changes))
	}
}

func TestPairing_AssignEmptyLocationUnassigns(t *testing.T) {
	p := NewPairing(sequentialCodes())
	_ = p.Identify("scr_1")
	_, _ = p.Assign("store-1")

	changed, err := p.Assign("")
	if err != nil || !changed {
		t.Fatalf("Assign(\"\") = %v, %v", changed, err)
	}
	if p.Status().State != StateUnpaired {
		t.Errorf("state = %v, want unpaired", p.Status().State)
	}
}

func TestPairing_CodeGeneratorError(t *testing.T) {
	boom := errors.New("no entropy")
	p := NewPairing(func() (string, error) { return "", boom })

	if err := p.Identify("scr_1"); !errors.Is(err, boom) {
		t.Errorf("Identify() error = %v, want %v", err, boom)
	}
	if p.Status().State != StateUnidentified {
		t.Error("failed Identify must leave the machine unidentified")
	}
}

func TestPairing_DefaultGenerator(t *testing.T) {
	p := NewPairing(nil)
	if err := p.Identify("scr_1"); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if code := p.Status().PairingCode; len(code) != 6 {
		t.Errorf("PairingCode = %q, want 6 digits", code)
	}
}
