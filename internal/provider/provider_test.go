package provider

import (
	"testing"

	"github.com/libdns/libdns"
)

func TestToLibdns(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"ipv4 a record", Record{Name: "internal.bar", Type: "A", Data: "192.0.2.1"}, false},
		{"ipv6 in a record", Record{Name: "internal.bar", Type: "A", Data: "2001:db8::1"}, true},
		{"ipv6 aaaa record", Record{Name: "v6", Type: "AAAA", Data: "2001:db8::1"}, false},
		{"invalid ip", Record{Name: "bad", Type: "A", Data: "not-an-ip"}, true},
		{"empty ip", Record{Name: "bad", Type: "A", Data: ""}, true},
		{"cname", Record{Name: "api", Type: "CNAME", Data: "reroute.com"}, false},
		{"txt", Record{Name: "api", Type: "TXT", Data: "hello"}, false},
		{"unknown type", Record{Name: "api", Type: "MX", Data: "mail"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.record)
			if tt.wantErr && err == nil {
				t.Fatal("Expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		})
	}
}

func TestToLibdnsAddress(t *testing.T) {
	rec, err := ToLibdns(Record{Name: "internal.bar", Type: "A", Data: "192.0.2.1"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	addr, ok := rec.(*libdns.Address)
	if !ok {
		t.Fatalf("expected *libdns.Address, got %T", rec)
	}
	if addr.IP.String() != "192.0.2.1" || addr.Name != "internal.bar" {
		t.Errorf("unexpected address %+v", addr)
	}
}

func TestRecordString(t *testing.T) {
	r := Record{Name: "internal.bar", Type: "A", Data: "192.0.2.1"}
	if got := r.String(); got != "internal.bar IN A 192.0.2.1" {
		t.Errorf("String() = %q", got)
	}
}
