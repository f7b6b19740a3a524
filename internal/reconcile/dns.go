package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanofslack/ovh-reconcile/internal/gateway"
	"github.com/evanofslack/ovh-reconcile/internal/provider"
)

const typeA = "A"

// DNSRecord is an A record of a zone.
type DNSRecord struct {
	Domain  string
	Name    string
	IP      string
	Present bool
}

func (d DNSRecord) Kind() Kind { return KindDNS }

func (d DNSRecord) Validate() error {
	if d.Domain == "" {
		return required(KindDNS, "domain")
	}
	if d.Name == "" {
		return required(KindDNS, "name")
	}
	if !d.Present {
		return nil
	}
	if d.IP == "" {
		return required(KindDNS, "ip")
	}
	if err := provider.Validate(d.record()); err != nil {
		return &ValidationError{Kind: KindDNS, Field: "ip", Reason: err.Error()}
	}
	return nil
}

func (d DNSRecord) record() provider.Record {
	return provider.Record{Name: d.Name, Type: typeA, Data: d.IP, Zone: d.Domain}
}

func (d DNSRecord) selector() string {
	return fmt.Sprintf("%s in domain %s", d.Name, d.Domain)
}

// compareDNS decides on the A records matching (domain, name). Records are
// keyed by their provider id in the returned decision.
func compareDNS(d DNSRecord, existing []provider.Record) Decision {
	ids := make([]string, 0, len(existing))
	for _, r := range existing {
		ids = append(ids, r.ID)
	}

	if !d.Present {
		if len(existing) == 0 {
			return Decision{Action: NoopAbsent}
		}
		return Decision{Action: Delete, IDs: ids}
	}

	switch len(existing) {
	case 0:
		return Decision{Action: Create}
	case 1:
		if existing[0].Data == d.IP {
			return Decision{Action: NoopMatch, IDs: ids}
		}
		return Decision{Action: Update, IDs: ids}
	default:
		return Decision{Action: Ambiguous, IDs: ids}
	}
}

func (d DNSRecord) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = d.Name + "." + d.Domain
	dns := r.engine.dns

	existing, err := dns.GetRecords(ctx, d.Domain, provider.Filter{Name: d.Name, Type: typeA})
	if err != nil {
		return Outcome{}, err
	}
	decision := compareDNS(d, existing)
	if err := r.decide(d.selector(), decision); err != nil {
		return Outcome{}, err
	}

	recordsPath := gateway.Path("domain", "zone", d.Domain, "record")
	switch decision.Action {
	case NoopMatch:
		return unchanged(fmt.Sprintf("%s is already registered in domain %s", d.Name, d.Domain), existing[0]), nil

	case NoopAbsent:
		return unchanged(fmt.Sprintf("Target %s doesn't exist on domain %s", d.Name, d.Domain), nil), nil

	case Create:
		var created provider.Record
		err := r.mutate(ctx, mutation{
			Step:   "create record",
			Method: http.MethodPost,
			Path:   recordsPath,
			Do: func(ctx context.Context) error {
				var err error
				created, err = dns.CreateRecord(ctx, d.Domain, d.record())
				return err
			},
		})
		if err != nil {
			return Outcome{}, err
		}
		return r.changed(fmt.Sprintf("%s successfully created in domain %s", d.record(), d.Domain), created), nil

	case Update:
		updated := d.record()
		updated.ID = existing[0].ID
		updated.TTL = existing[0].TTL
		err := r.mutate(ctx, mutation{
			Step:   "update record",
			Method: http.MethodPut,
			Path:   recordsPath + "/" + updated.ID,
			Do: func(ctx context.Context) error {
				return dns.UpdateRecord(ctx, d.Domain, updated)
			},
		})
		if err != nil {
			return Outcome{}, err
		}
		return r.changed(fmt.Sprintf("%s successfully updated in domain %s (was %s)", updated, d.Domain, existing[0].Data), updated), nil

	case Delete:
		deleted := make([]string, 0, len(existing))
		for _, rec := range existing {
			err := r.mutate(ctx, mutation{
				Step:   "delete record",
				Method: http.MethodDelete,
				Path:   recordsPath + "/" + rec.ID,
				Do: func(ctx context.Context) error {
					return dns.DeleteRecord(ctx, d.Domain, rec)
				},
			})
			if err != nil {
				return Outcome{}, err
			}
			deleted = append(deleted, rec.String())
		}
		return r.changed(fmt.Sprintf("%s successfully deleted from domain %s", strings.Join(deleted, ","), d.Domain), deleted), nil
	}
	return Outcome{}, fmt.Errorf("unexpected action %s", decision.Action)
}

// DNSRefresh applies pending changes of a zone. It is not idempotent.
type DNSRefresh struct {
	Domain string
}

func (d DNSRefresh) Kind() Kind { return KindDNSRefresh }

func (d DNSRefresh) Validate() error {
	if d.Domain == "" {
		return required(KindDNSRefresh, "domain")
	}
	return nil
}

func (d DNSRefresh) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = d.Domain
	refresher, ok := r.engine.dns.(provider.Refresher)
	if !ok {
		return Outcome{}, fmt.Errorf("DNS provider does not support zone refresh")
	}
	r.action = Update

	err := r.mutate(ctx, mutation{
		Step:   "refresh zone",
		Method: http.MethodPost,
		Path:   gateway.Path("domain", "zone", d.Domain, "refresh"),
		Do: func(ctx context.Context) error {
			return refresher.RefreshZone(ctx, d.Domain)
		},
	})
	if err != nil {
		return Outcome{}, err
	}
	return r.changed(fmt.Sprintf("Domain %s successfully refreshed", d.Domain), nil), nil
}
