package ovh

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/evanofslack/ovh-reconcile/internal/gateway"
	"github.com/evanofslack/ovh-reconcile/internal/metrics"
	"github.com/evanofslack/ovh-reconcile/internal/provider"
)

// OVHProvider manages zone records through /domain/zone.
type OVHProvider struct {
	gw      gateway.Gateway
	metrics *metrics.Metrics
	ttl     int
}

type zoneRecord struct {
	ID        int64  `json:"id"`
	Zone      string `json:"zone"`
	SubDomain string `json:"subDomain"`
	FieldType string `json:"fieldType"`
	Target    string `json:"target"`
	TTL       int    `json:"ttl"`
}

type recordParams struct {
	FieldType string `json:"fieldType,omitempty"`
	SubDomain string `json:"subDomain"`
	Target    string `json:"target"`
	TTL       int    `json:"ttl,omitempty"`
}

func New(gw gateway.Gateway, ttl int, metrics *metrics.Metrics) *OVHProvider {
	return &OVHProvider{gw: gw, metrics: metrics, ttl: ttl}
}

func (p *OVHProvider) GetRecords(ctx context.Context, zone string, filter provider.Filter) ([]provider.Record, error) {
	slog.Debug("Getting DNS records", "zone", zone, "name", filter.Name, "type", filter.Type)
	start := time.Now()

	query := url.Values{}
	if filter.Type != "" {
		query.Set("fieldType", filter.Type)
	}
	if filter.Name != "" {
		query.Set("subDomain", filter.Name)
	}

	var ids []int64
	if err := p.gw.Get(ctx, gateway.Path("domain", "zone", zone, "record"), query, &ids); err != nil {
		p.metrics.IncDNSRequest("read", zone, false)
		return nil, fmt.Errorf("failed to list DNS records: %w", err)
	}

	result := make([]provider.Record, 0, len(ids))
	for _, id := range ids {
		var r zoneRecord
		if err := p.gw.Get(ctx, recordPath(zone, id), nil, &r); err != nil {
			p.metrics.IncDNSRequest("read", zone, false)
			return nil, fmt.Errorf("failed to get DNS record %d: %w", id, err)
		}
		result = append(result, toRecord(r, zone))
	}

	p.metrics.IncDNSRequest("read", zone, true)
	slog.Debug("Retrieved DNS records", "zone", zone, "count", len(result), "duration", time.Since(start))
	return result, nil
}

func (p *OVHProvider) CreateRecord(ctx context.Context, zone string, record provider.Record) (provider.Record, error) {
	slog.Info("Creating DNS record", "zone", zone, "name", record.Name, "type", record.Type, "data", record.Data)

	params := recordParams{
		FieldType: record.Type,
		SubDomain: record.Name,
		Target:    record.Data,
		TTL:       p.recordTTL(record),
	}
	var created zoneRecord
	if err := p.gw.Post(ctx, gateway.Path("domain", "zone", zone, "record"), params, &created); err != nil {
		p.metrics.IncDNSRequest("create", zone, false)
		return provider.Record{}, fmt.Errorf("failed to create DNS record: %w", err)
	}

	p.metrics.IncDNSRequest("create", zone, true)
	return toRecord(created, zone), nil
}

func (p *OVHProvider) UpdateRecord(ctx context.Context, zone string, record provider.Record) error {
	slog.Info("Updating DNS record", "zone", zone, "id", record.ID, "name", record.Name, "data", record.Data)

	id, err := strconv.ParseInt(record.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid OVH record id %q: %w", record.ID, err)
	}
	params := recordParams{
		SubDomain: record.Name,
		Target:    record.Data,
		TTL:       p.recordTTL(record),
	}
	if err := p.gw.Put(ctx, recordPath(zone, id), params, nil); err != nil {
		p.metrics.IncDNSRequest("update", zone, false)
		return fmt.Errorf("failed to update DNS record: %w", err)
	}

	p.metrics.IncDNSRequest("update", zone, true)
	return nil
}

func (p *OVHProvider) DeleteRecord(ctx context.Context, zone string, record provider.Record) error {
	slog.Info("Deleting DNS record", "zone", zone, "id", record.ID, "name", record.Name, "type", record.Type)

	id, err := strconv.ParseInt(record.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid OVH record id %q: %w", record.ID, err)
	}
	if err := p.gw.Delete(ctx, recordPath(zone, id), nil); err != nil {
		p.metrics.IncDNSRequest("delete", zone, false)
		return fmt.Errorf("failed to delete DNS record: %w", err)
	}

	p.metrics.IncDNSRequest("delete", zone, true)
	return nil
}

func (p *OVHProvider) RefreshZone(ctx context.Context, zone string) error {
	slog.Info("Refreshing DNS zone", "zone", zone)
	if err := p.gw.Post(ctx, gateway.Path("domain", "zone", zone, "refresh"), nil, nil); err != nil {
		p.metrics.IncDNSRequest("refresh", zone, false)
		return fmt.Errorf("failed to refresh zone: %w", err)
	}
	p.metrics.IncDNSRequest("refresh", zone, true)
	return nil
}

func (p *OVHProvider) recordTTL(record provider.Record) int {
	if record.TTL > 0 {
		return int(record.TTL.Seconds())
	}
	return p.ttl
}

func recordPath(zone string, id int64) string {
	return gateway.Path("domain", "zone", zone, "record", strconv.FormatInt(id, 10))
}

func toRecord(r zoneRecord, zone string) provider.Record {
	return provider.Record{
		ID:   strconv.FormatInt(r.ID, 10),
		Name: r.SubDomain,
		Type: r.FieldType,
		Data: r.Target,
		Zone: zone,
		TTL:  time.Duration(r.TTL) * time.Second,
	}
}
