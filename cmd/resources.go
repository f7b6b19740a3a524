package cmd

import (
	"github.com/spf13/cobra"

	"github.com/evanofslack/ovh-reconcile/internal/reconcile"
	"github.com/evanofslack/ovh-reconcile/internal/source"
)

const (
	statePresent = "present"
	stateAbsent  = "absent"
)

// newSource returns the template description reader. Tests replace it.
var newSource = source.New

// parseState maps the --state flag to a presence boolean.
func parseState(kind reconcile.Kind, state string) (bool, error) {
	switch state {
	case statePresent:
		return true, nil
	case stateAbsent:
		return false, nil
	default:
		return false, &reconcile.ValidationError{Kind: kind, Field: "state", Reason: "must be present or absent"}
	}
}

func newDNSCmd() *cobra.Command {
	var domain, name, ip, state string
	cmd := &cobra.Command{
		Use:   "dns",
		Short: "Reconcile an A record, or refresh a zone with --name refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "refresh" {
				return reconcileDesired(cmd, reconcile.DNSRefresh{Domain: domain})
			}
			present, err := parseState(reconcile.KindDNS, state)
			if err != nil {
				return err
			}
			return reconcileDesired(cmd, reconcile.DNSRecord{Domain: domain, Name: name, IP: ip, Present: present})
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "zone name")
	cmd.Flags().StringVar(&name, "name", "", "subdomain")
	cmd.Flags().StringVar(&ip, "ip", "", "record target, required when present")
	cmd.Flags().StringVar(&state, "state", statePresent, "present or absent")
	return cmd
}

func newReverseCmd() *cobra.Command {
	var domain, name, ip string
	cmd := &cobra.Command{
		Use:   "reverse",
		Short: "Point the reverse of an IP to name.domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcileDesired(cmd, reconcile.Reverse{Domain: domain, Name: name, IP: ip})
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "domain")
	cmd.Flags().StringVar(&name, "name", "", "subdomain")
	cmd.Flags().StringVar(&ip, "ip", "", "IP address")
	return cmd
}

func newBootCmd() *cobra.Command {
	var name, mode string
	var force bool
	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Set the boot mode of a dedicated server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcileDesired(cmd, reconcile.Boot{Server: name, Mode: mode, ForceReboot: force})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "server name")
	cmd.Flags().StringVar(&mode, "boot", "harddisk", "harddisk or rescue")
	cmd.Flags().BoolVar(&force, "force-reboot", false, "reboot the server once the boot mode is set")
	return cmd
}

func newMonitoringCmd() *cobra.Command {
	var name, state string
	cmd := &cobra.Command{
		Use:   "monitoring",
		Short: "Enable or disable OVH monitoring of a dedicated server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseState(reconcile.KindMonitoring, state)
			if err != nil {
				return err
			}
			return reconcileDesired(cmd, reconcile.Monitoring{Server: name, Enabled: enabled})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "server name")
	cmd.Flags().StringVar(&state, "state", statePresent, "present enables monitoring, absent disables it")
	return cmd
}

func newVrackCmd() *cobra.Command {
	var name, vrack, state string
	cmd := &cobra.Command{
		Use:   "vrack",
		Short: "Add or remove a dedicated server from a vrack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			present, err := parseState(reconcile.KindVrack, state)
			if err != nil {
				return err
			}
			return reconcileDesired(cmd, reconcile.Vrack{Server: name, Vrack: vrack, Present: present})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "server name")
	cmd.Flags().StringVar(&vrack, "vrack", "", "vrack service name")
	cmd.Flags().StringVar(&state, "state", statePresent, "present or absent")
	return cmd
}

func newInstallCmd() *cobra.Command {
	var in reconcile.Install
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Start the installation of a template on a dedicated server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcileDesired(cmd, in)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Server, "name", "", "server name")
	f.StringVar(&in.Template, "template", "", "template name")
	f.StringVar(&in.Hostname, "hostname", "", "custom hostname")
	f.StringVar(&in.SSHKeyName, "ssh-key-name", "", "SSH key registered on the account")
	f.BoolVar(&in.UseDistribKernel, "use-distrib-kernel", false, "use the distribution kernel")
	f.StringVar(&in.PostInstallScriptLink, "post-installation-script-link", "", "script run after installation")
	f.BoolVar(&in.Wait, "wait", false, "wait for the installation to finish")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Wait for the running installation of a dedicated server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcileDesired(cmd, reconcile.InstallStatus{Server: name})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "server name")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var name, location, state string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Create or delete a personal installation template",
		Long: `Create or delete a personal installation template described by a YAML file.
The description is read from a local path or an http(s) URL. A failed creation
leaves the steps already applied in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			present, err := parseState(reconcile.KindTemplate, state)
			if err != nil {
				return err
			}
			if location == "" {
				return &reconcile.ValidationError{Kind: reconcile.KindTemplate, Field: "template", Reason: "is required"}
			}
			spec, err := newSource().Template(cmd.Context(), location)
			if err != nil {
				return err
			}
			return reconcileDesired(cmd, reconcile.Template{Server: name, Present: present, Spec: spec})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "server used to size the hardware RAID")
	cmd.Flags().StringVar(&location, "template", "", "path or URL of the template description")
	cmd.Flags().StringVar(&state, "state", statePresent, "present or absent")
	return cmd
}

func newTerminateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "terminate",
		Short: "Request the termination of a dedicated server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcileDesired(cmd, reconcile.Terminate{Server: name})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "server name")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list {dedicated|templates}",
		Short:     "List dedicated servers or personal templates",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{reconcile.ListDedicated, reconcile.ListTemplates},
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcileDesired(cmd, reconcile.Listing{Target: args[0]})
		},
	}
}

func newMACCmd() *cobra.Command {
	var name, linkType string
	cmd := &cobra.Command{
		Use:   "mac",
		Short: "Show the MAC addresses of a dedicated server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcileDesired(cmd, reconcile.MAC{Server: name, LinkType: linkType})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "server name")
	cmd.Flags().StringVar(&linkType, "link-type", "public", "public or private")
	return cmd
}
