package governor

import (
	"reflect"
	"testing"
)

func TestParseTargetLoads(t *testing.T) {
	cases := []struct {
		in      string
		want    []uint32
		wantErr bool
	}{
		{in: "90", want: []uint32{90}},
		{in: "80 1700000:90 1900000:99", want: []uint32{80, 1700000, 90, 1900000, 99}},
		{in: "  85  ", want: []uint32{85}},
		{in: "", wantErr: true},
		{in: "80 1700000", wantErr: true}, // even length
	}
	for _, tc := range cases {
		got, err := ParseTargetLoads(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTargetLoads(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTargetLoads(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseTargetLoads(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatTargetLoadsRoundTrip(t *testing.T) {
	in := "80 1700000:90 1900000:99"
	loads, err := ParseTargetLoads(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := FormatTargetLoads(loads); got != in {
		t.Errorf("FormatTargetLoads round-trip = %q, want %q", got, in)
	}
}

func TestTargetLoadAt(t *testing.T) {
	loads := []uint32{80, 1700000, 90, 1900000, 99}
	cases := []struct {
		freq uint32
		want uint32
	}{
		{freq: 500000, want: 80},
		{freq: 1700000, want: 90},
		{freq: 1800000, want: 90},
		{freq: 1900000, want: 99},
		{freq: 2500000, want: 99},
	}
	for _, tc := range cases {
		if got := TargetLoadAt(loads, tc.freq); got != tc.want {
			t.Errorf("TargetLoadAt(%v, %d) = %d, want %d", loads, tc.freq, got, tc.want)
		}
	}
}
