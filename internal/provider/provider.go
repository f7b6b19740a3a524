package provider

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/libdns/libdns"
)

// Provider manages the records of a DNS zone. Record names are relative to
// the zone ("internal.bar" in "example.com").
type Provider interface {
	GetRecords(ctx context.Context, zone string, filter Filter) ([]Record, error)
	CreateRecord(ctx context.Context, zone string, record Record) (Record, error)
	UpdateRecord(ctx context.Context, zone string, record Record) error
	DeleteRecord(ctx context.Context, zone string, record Record) error
}

// Refresher is implemented by providers whose zone changes only take effect
// after an explicit refresh.
type Refresher interface {
	RefreshZone(ctx context.Context, zone string) error
}

// Filter narrows GetRecords; empty fields match everything.
type Filter struct {
	Name string
	Type string
}

type Record struct {
	ID   string        `json:"id"`
	Name string        `json:"subDomain"`
	Type string        `json:"fieldType"`
	Data string        `json:"target"`
	Zone string        `json:"zone"`
	TTL  time.Duration `json:"ttl"`
}

func (r Record) String() string {
	return fmt.Sprintf("%s IN %s %s", r.Name, r.Type, r.Data)
}

func ToLibdns(r Record) (libdns.Record, error) {
	switch r.Type {
	case "A", "AAAA":
		addr, err := netip.ParseAddr(r.Data)
		if err != nil {
			return nil, fmt.Errorf("fail parse ip addr %s, err=%w", r.Data, err)
		}
		if r.Type == "A" && !addr.Is4() {
			return nil, fmt.Errorf("%s is not an IPv4 address", r.Data)
		}
		if r.Type == "AAAA" && !addr.Is6() {
			return nil, fmt.Errorf("%s is not an IPv6 address", r.Data)
		}
		out := &libdns.Address{
			Name: r.Name,
			IP:   addr,
			TTL:  r.TTL,
		}
		return out, nil
	case "CNAME":
		out := &libdns.CNAME{
			Name:   r.Name,
			Target: r.Data,
			TTL:    r.TTL,
		}
		return out, nil
	case "TXT":
		out := &libdns.TXT{
			Name: r.Name,
			Text: r.Data,
			TTL:  r.TTL,
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown record type %s", r.Type)
	}
}

// Validate checks that the record data is well formed for its type.
func Validate(r Record) error {
	_, err := ToLibdns(r)
	return err
}
