package reconcile

import (
	"context"
	"fmt"

	"github.com/evanofslack/ovh-reconcile/internal/gateway"
)

// TemplateSpec is a personal installation template description.
type TemplateSpec struct {
	Name                         string
	BaseTemplateName             string
	DefaultLanguage              string
	CustomHostname               string
	PostInstallationScriptLink   string
	PostInstallationScriptReturn string
	SSHKeyName                   string
	UseDistributionKernel        bool
	PartitionScheme              string
	PartitionSchemePriority      int
	IsHardwareRaid               bool
	RaidMode                     string
	Partitions                   []Partition
}

// Partition is one partition of the scheme. Raid is empty for a plain partition.
type Partition struct {
	Filesystem string `json:"filesystem"`
	Mountpoint string `json:"mountpoint"`
	Raid       string `json:"raid,omitempty"`
	Size       int    `json:"size"`
	Step       int    `json:"step"`
	Type       string `json:"type"`
}

// Template creates or deletes a personal installation template. Server is
// only used to read the hardware RAID profile.
type Template struct {
	Server  string
	Present bool
	Spec    TemplateSpec
}

type templateCreate struct {
	BaseTemplateName string `json:"baseTemplateName"`
	DefaultLanguage  string `json:"defaultLanguage"`
	Name             string `json:"name"`
}

type templateCustomization struct {
	CustomHostname               string `json:"customHostname,omitempty"`
	PostInstallationScriptLink   string `json:"postInstallationScriptLink,omitempty"`
	PostInstallationScriptReturn string `json:"postInstallationScriptReturn,omitempty"`
	SSHKeyName                   string `json:"sshKeyName,omitempty"`
	UseDistributionKernel        bool   `json:"useDistributionKernel"`
}

type templateUpdate struct {
	Customization   templateCustomization `json:"customization"`
	DefaultLanguage string                `json:"defaultLanguage"`
	TemplateName    string                `json:"templateName"`
}

type partitionScheme struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

type hardwareRaid struct {
	Disks []string `json:"disks"`
	Mode  string   `json:"mode"`
	Name  string   `json:"name"`
	Step  int      `json:"step"`
}

type hardwareRaidProfile struct {
	Controllers []struct {
		Model string `json:"model"`
		Type  string `json:"type"`
		Disks []struct {
			Names []string `json:"names"`
		} `json:"disks"`
	} `json:"controllers"`
}

func (t Template) Kind() Kind { return KindTemplate }

func (t Template) Validate() error {
	s := t.Spec
	if s.Name == "" {
		return required(KindTemplate, "templateName")
	}
	if !t.Present {
		return nil
	}
	switch {
	case s.BaseTemplateName == "":
		return required(KindTemplate, "baseTemplateName")
	case s.DefaultLanguage == "":
		return required(KindTemplate, "defaultLanguage")
	case s.PartitionScheme == "":
		return required(KindTemplate, "partitionScheme")
	}
	if s.IsHardwareRaid {
		if t.Server == "" {
			return &ValidationError{Kind: KindTemplate, Field: "server", Reason: "is required for a hardware RAID template"}
		}
		if s.RaidMode == "" {
			return required(KindTemplate, "raidMode")
		}
	}
	return nil
}

func (t Template) templatePath(sub ...string) string {
	return gateway.Path(append([]string{"me", "installationTemplate", t.Spec.Name}, sub...)...)
}

func (t Template) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = t.Spec.Name
	if !t.Present {
		return t.delete(ctx, r)
	}
	return t.create(ctx, r)
}

// raidDisks returns every disk of the server's single hardware RAID controller.
func (t Template) raidDisks(ctx context.Context, gw gateway.Gateway) ([]string, error) {
	var profile hardwareRaidProfile
	if err := gw.Get(ctx, serverPath(t.Server, "install", "hardwareRaidProfile"), nil, &profile); err != nil {
		return nil, err
	}
	if len(profile.Controllers) != 1 {
		return nil, &TopologyMismatchError{Server: t.Server, Controllers: len(profile.Controllers)}
	}
	var disks []string
	for _, group := range profile.Controllers[0].Disks {
		disks = append(disks, group.Names...)
	}
	return disks, nil
}

type templateStep struct {
	name  string
	apply func(ctx context.Context) error
}

// create runs the provisioning steps in order. A failed step stops the
// sequence and leaves the previous ones applied.
func (t Template) create(ctx context.Context, r *run) (Outcome, error) {
	s := t.Spec
	r.action = Create

	// The RAID profile is read before anything is created so a topology
	// refusal leaves nothing behind.
	var disks []string
	if s.IsHardwareRaid {
		var err error
		if disks, err = t.raidDisks(ctx, r.engine.gw); err != nil {
			return Outcome{}, err
		}
	}

	schemePath := func(sub ...string) string {
		return t.templatePath(append([]string{"partitionScheme", s.PartitionScheme}, sub...)...)
	}

	steps := []templateStep{
		{"register template", func(ctx context.Context) error {
			body := templateCreate{BaseTemplateName: s.BaseTemplateName, DefaultLanguage: s.DefaultLanguage, Name: s.Name}
			return r.post(ctx, "register template", gateway.Path("me", "installationTemplate"), body, nil)
		}},
		{"customize template", func(ctx context.Context) error {
			body := templateUpdate{
				Customization: templateCustomization{
					CustomHostname:               s.CustomHostname,
					PostInstallationScriptLink:   s.PostInstallationScriptLink,
					PostInstallationScriptReturn: s.PostInstallationScriptReturn,
					SSHKeyName:                   s.SSHKeyName,
					UseDistributionKernel:        s.UseDistributionKernel,
				},
				DefaultLanguage: s.DefaultLanguage,
				TemplateName:    s.Name,
			}
			return r.put(ctx, "customize template", t.templatePath(), body)
		}},
		{"create partition scheme", func(ctx context.Context) error {
			body := partitionScheme{Name: s.PartitionScheme, Priority: s.PartitionSchemePriority}
			return r.post(ctx, "create partition scheme", t.templatePath("partitionScheme"), body, nil)
		}},
		{"configure hardware raid", func(ctx context.Context) error {
			if !s.IsHardwareRaid {
				return nil
			}
			body := hardwareRaid{Disks: disks, Mode: s.RaidMode, Name: s.PartitionScheme, Step: 1}
			return r.post(ctx, "configure hardware raid", schemePath("hardwareRaid"), body, nil)
		}},
		{"create partitions", func(ctx context.Context) error {
			for _, p := range s.Partitions {
				if err := r.post(ctx, "create partition "+p.Mountpoint, schemePath("partition"), p, nil); err != nil {
					return fmt.Errorf("partition %s: %w", p.Mountpoint, err)
				}
			}
			return nil
		}},
		{"check integrity", func(ctx context.Context) error {
			return r.post(ctx, "check integrity", t.templatePath("checkIntegrity"), nil, nil)
		}},
	}

	for i, step := range steps {
		if err := step.apply(ctx); err != nil {
			return Outcome{}, &TemplateStepError{Template: s.Name, Step: i + 1, Name: step.name, Err: err}
		}
	}
	return r.changed(fmt.Sprintf("Template %s successfully created", s.Name), map[string]any{
		"templateName":    s.Name,
		"partitionScheme": s.PartitionScheme,
		"partitions":      len(s.Partitions),
	}), nil
}

// delete removes the template by name. A template that does not exist is
// reported unchanged.
func (t Template) delete(ctx context.Context, r *run) (Outcome, error) {
	name := t.Spec.Name
	err := r.engine.gw.Get(ctx, t.templatePath(), nil, nil)
	if gateway.IsNotFound(err) {
		r.action = NoopAbsent
		return unchanged(fmt.Sprintf("Template %s doesn't exist", name), nil), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	r.action = Delete
	err = r.del(ctx, "delete template", t.templatePath())
	if gateway.IsNotFound(err) {
		r.action = NoopAbsent
		return unchanged(fmt.Sprintf("Template %s doesn't exist", name), nil), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return r.changed(fmt.Sprintf("Template %s successfully deleted", name), nil), nil
}
