package rnet

import (
	"errors"
	"testing"
)

func TestParseZoneID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ZoneID
		wantErr bool
	}{
		{name: "simple", input: "1:4", want: ZoneID{Controller: 1, Zone: 4}},
		{name: "spaces", input: " 2 : 6 ", want: ZoneID{Controller: 2, Zone: 6}},
		{name: "upper bound", input: "128:128", want: ZoneID{Controller: 128, Zone: 128}},
		{name: "zero controller", input: "0:1", wantErr: true},
		{name: "zone too large", input: "1:129", wantErr: true},
		{name: "missing zone", input: "1", wantErr: true},
		{name: "too many parts", input: "1:2:3", wantErr: true},
		{name: "not a number", input: "a:1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseZoneID(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidZone) {
					t.Errorf("ParseZoneID(%q) error = %v, want ErrInvalidZone", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseZoneID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseZoneID(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestZoneIDString(t *testing.T) {
	z := ZoneID{Controller: 3, Zone: 7}
	if got := z.String(); got != "3:7" {
		t.Errorf("String() = %q, want %q", got, "3:7")
	}

	parsed, err := ParseZoneID(z.String())
	if err != nil {
		t.Fatalf("ParseZoneID(String()) error: %v", err)
	}
	if parsed != z {
		t.Errorf("ParseZoneID(String()) = %+v, want %+v", parsed, z)
	}
}

func TestZoneIDWireConversion(t *testing.T) {
	z := ZoneID{Controller: 1, Zone: 1}
	if z.wireController() != 0 || z.wireZone() != 0 {
		t.Errorf("wire bytes = (%d, %d), want (0, 0)", z.wireController(), z.wireZone())
	}

	back := zoneIDFromWire(0x05, 0x07)
	if back != (ZoneID{Controller: 6, Zone: 8}) {
		t.Errorf("zoneIDFromWire(5, 7) = %+v, want 6:8", back)
	}
}
