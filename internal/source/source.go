// Package source reads template descriptions from a local file or an HTTP(S) URL.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evanofslack/ovh-reconcile/internal/reconcile"
)

type Client interface {
	Template(ctx context.Context, location string) (reconcile.TemplateSpec, error)
}

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

type client struct {
	http Httper
}

func New() Client {
	return &client{http: &http.Client{}}
}

func NewWithHttper(h Httper) Client {
	return &client{http: h}
}

func (c *client) Template(ctx context.Context, location string) (reconcile.TemplateSpec, error) {
	data, err := c.read(ctx, location)
	if err != nil {
		return reconcile.TemplateSpec{}, err
	}

	var file TemplateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return reconcile.TemplateSpec{}, fmt.Errorf("parse template %s, err=%w", location, err)
	}
	slog.Debug("Loaded template description", "location", location, "template", file.TemplateName, "partitions", len(file.Partition))
	return file.Spec(), nil
}

func (c *client) read(ctx context.Context, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read template file: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("template request, status=%d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Spec converts the file to the reconciler's template description.
func (f TemplateFile) Spec() reconcile.TemplateSpec {
	partitions := make([]reconcile.Partition, 0, len(f.Partition))
	for _, p := range f.Partition {
		partitions = append(partitions, reconcile.Partition{
			Filesystem: p.Filesystem,
			Mountpoint: p.Mountpoint,
			Raid:       p.Raid,
			Size:       p.Size,
			Step:       p.Step,
			Type:       p.Type,
		})
	}
	return reconcile.TemplateSpec{
		Name:                         f.TemplateName,
		BaseTemplateName:             f.BaseTemplateName,
		DefaultLanguage:              f.DefaultLanguage,
		CustomHostname:               f.CustomHostname,
		PostInstallationScriptLink:   f.PostInstallationScriptLink,
		PostInstallationScriptReturn: f.PostInstallationScriptReturn,
		SSHKeyName:                   f.SSHKeyName,
		UseDistributionKernel:        f.UseDistributionKernel,
		PartitionScheme:              f.PartitionScheme,
		PartitionSchemePriority:      f.PartitionSchemePriority,
		IsHardwareRaid:               f.IsHardwareRaid,
		RaidMode:                     f.RaidMode,
		Partitions:                   partitions,
	}
}
