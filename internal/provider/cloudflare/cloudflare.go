package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"

	"github.com/evanofslack/ovh-reconcile/internal/config"
	"github.com/evanofslack/ovh-reconcile/internal/metrics"
	"github.com/evanofslack/ovh-reconcile/internal/provider"
)

type CloudflareProvider struct {
	client  *cloudflare.API
	metrics *metrics.Metrics
	ttl     int
	zones   map[string]string // Cache zone name to ID mapping
}

func New(cfg config.DNS, metrics *metrics.Metrics) (*CloudflareProvider, error) {
	token := cfg.Token
	if token == "" {
		return nil, fmt.Errorf("cloudflare API token required")
	}

	client, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}

	// Pre-cache zone IDs for all configured zones
	zoneCache := make(map[string]string)
	for _, zone := range cfg.Zones {
		id, err := client.ZoneIDByName(zone)
		if err != nil {
			return nil, fmt.Errorf("failed to get zone ID for %s: %w", zone, err)
		}
		zoneCache[zone] = id
	}

	return &CloudflareProvider{
		client:  client,
		metrics: metrics,
		ttl:     cfg.TTL,
		zones:   zoneCache,
	}, nil
}

func (p *CloudflareProvider) zoneID(zone string) (string, error) {
	if id, ok := p.zones[zone]; ok {
		return id, nil
	}
	id, err := p.client.ZoneIDByName(zone)
	if err != nil {
		return "", fmt.Errorf("failed to get zone ID for %s: %w", zone, err)
	}
	p.zones[zone] = id
	return id, nil
}

func (p *CloudflareProvider) GetRecords(ctx context.Context, zone string, filter provider.Filter) ([]provider.Record, error) {
	slog.Debug("Getting DNS records", "zone", zone, "name", filter.Name, "type", filter.Type)
	start := time.Now()

	zoneID, err := p.zoneID(zone)
	if err != nil {
		return nil, err
	}

	// Get all matching records for the zone with pagination
	var allRecords []cloudflare.DNSRecord
	page := 1
	for {
		rc := cloudflare.ZoneIdentifier(zoneID)
		params := cloudflare.ListDNSRecordsParams{
			Type: filter.Type,
			ResultInfo: cloudflare.ResultInfo{
				Page:    page,
				PerPage: 100,
			},
		}
		if filter.Name != "" {
			params.Name = absoluteName(filter.Name, zone)
		}

		records, resultInfo, err := p.client.ListDNSRecords(ctx, rc, params)
		if err != nil {
			p.metrics.IncDNSRequest("read", zone, false)
			return nil, fmt.Errorf("failed to list DNS records: %w", err)
		}

		allRecords = append(allRecords, records...)
		if resultInfo == nil || page >= resultInfo.TotalPages {
			break
		}
		page++
	}

	// Convert to provider records
	result := make([]provider.Record, 0, len(allRecords))
	for _, r := range allRecords {
		result = append(result, toRecord(r, zone))
	}

	p.metrics.IncDNSRequest("read", zone, true)
	slog.Debug("Retrieved DNS records", "zone", zone, "count", len(result), "duration", time.Since(start))
	return result, nil
}

func (p *CloudflareProvider) CreateRecord(ctx context.Context, zone string, record provider.Record) (provider.Record, error) {
	slog.Info("Creating DNS record", "zone", zone, "name", record.Name, "type", record.Type, "data", record.Data)

	zoneID, err := p.zoneID(zone)
	if err != nil {
		return provider.Record{}, err
	}

	params := cloudflare.CreateDNSRecordParams{
		Type:    record.Type,
		Name:    absoluteName(record.Name, zone),
		Content: record.Data,
		TTL:     p.recordTTL(record),
	}

	created, err := p.client.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), params)
	if err != nil {
		p.metrics.IncDNSRequest("create", zone, false)
		return provider.Record{}, fmt.Errorf("failed to create DNS record: %w", err)
	}

	p.metrics.IncDNSRequest("create", zone, true)
	return toRecord(created, zone), nil
}

func (p *CloudflareProvider) UpdateRecord(ctx context.Context, zone string, record provider.Record) error {
	slog.Info("Updating DNS record", "zone", zone, "name", record.Name, "type", record.Type, "data", record.Data)

	zoneID, err := p.zoneID(zone)
	if err != nil {
		return err
	}

	params := cloudflare.UpdateDNSRecordParams{
		ID:      record.ID,
		Type:    record.Type,
		Name:    absoluteName(record.Name, zone),
		Content: record.Data,
		TTL:     p.recordTTL(record),
	}

	_, err = p.client.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), params)
	if err != nil {
		p.metrics.IncDNSRequest("update", zone, false)
		return fmt.Errorf("failed to update DNS record: %w", err)
	}

	p.metrics.IncDNSRequest("update", zone, true)
	return nil
}

func (p *CloudflareProvider) DeleteRecord(ctx context.Context, zone string, record provider.Record) error {
	slog.Info("Deleting DNS record", "zone", zone, "name", record.Name, "type", record.Type)

	zoneID, err := p.zoneID(zone)
	if err != nil {
		return err
	}

	err = p.client.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), record.ID)
	if err != nil {
		p.metrics.IncDNSRequest("delete", zone, false)
		return fmt.Errorf("failed to delete DNS record: %w", err)
	}

	p.metrics.IncDNSRequest("delete", zone, true)
	return nil
}

func (p *CloudflareProvider) recordTTL(record provider.Record) int {
	if record.TTL > 0 {
		return int(record.TTL.Seconds())
	}
	return p.ttl
}

func toRecord(r cloudflare.DNSRecord, zone string) provider.Record {
	return provider.Record{
		ID:   r.ID,
		Name: relativeName(r.Name, zone),
		Type: r.Type,
		Data: r.Content,
		TTL:  time.Duration(r.TTL) * time.Second,
		Zone: zone,
	}
}

// Cloudflare stores fully qualified names; providers speak zone-relative ones.
func absoluteName(name, zone string) string {
	if name == "" || name == "@" {
		return zone
	}
	return name + "." + zone
}

func relativeName(fqdn, zone string) string {
	if fqdn == zone {
		return "@"
	}
	return strings.TrimSuffix(fqdn, "."+zone)
}
