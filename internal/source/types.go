package source

// TemplateFile is the flat description of a personal installation template.
type TemplateFile struct {
	TemplateName                 string      `yaml:"templateName"`
	BaseTemplateName             string      `yaml:"baseTemplateName"`
	DefaultLanguage              string      `yaml:"defaultLanguage"`
	CustomHostname               string      `yaml:"customHostname"`
	PostInstallationScriptLink   string      `yaml:"postInstallationScriptLink"`
	PostInstallationScriptReturn string      `yaml:"postInstallationScriptReturn"`
	SSHKeyName                   string      `yaml:"sshKeyName"`
	UseDistributionKernel        bool        `yaml:"useDistributionKernel"`
	PartitionScheme              string      `yaml:"partitionScheme"`
	PartitionSchemePriority      int         `yaml:"partitionSchemePriority"`
	IsHardwareRaid               bool        `yaml:"isHardwareRaid"`
	RaidMode                     string      `yaml:"raidMode"`
	Partition                    []Partition `yaml:"partition"`
}

type Partition struct {
	Filesystem string `yaml:"filesystem"`
	Mountpoint string `yaml:"mountpoint"`
	Raid       string `yaml:"raid,omitempty"`
	Size       int    `yaml:"size"`
	Step       int    `yaml:"step"`
	Type       string `yaml:"type"`
}
