package reconcile

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/evanofslack/ovh-reconcile/internal/gateway"
	"github.com/evanofslack/ovh-reconcile/internal/poll"
)

// dedicatedServer is the subset of /dedicated/server/{name} the reconciler reads.
type dedicatedServer struct {
	Name       string `json:"name"`
	BootID     int64  `json:"bootId"`
	Monitoring bool   `json:"monitoring"`
	Reverse    string `json:"reverse"`
}

func serverPath(name string, sub ...string) string {
	return gateway.Path(append([]string{"dedicated", "server", name}, sub...)...)
}

func (r *run) getServer(ctx context.Context, name string) (dedicatedServer, error) {
	var s dedicatedServer
	if err := r.engine.gw.Get(ctx, serverPath(name), nil, &s); err != nil {
		return s, err
	}
	return s, nil
}

// Boot modes and their OVH boot ids.
var bootIDs = map[string]int64{
	"harddisk": 1,
	"rescue":   1122,
}

type Boot struct {
	Server string
	// Mode is harddisk or rescue; empty means harddisk.
	Mode string
	// ForceReboot reboots the server when the boot mode is already set.
	ForceReboot bool
}

func (b Boot) Kind() Kind { return KindBoot }

func (b Boot) mode() string {
	if b.Mode == "" {
		return "harddisk"
	}
	return b.Mode
}

func (b Boot) Validate() error {
	if b.Server == "" {
		return required(KindBoot, "server")
	}
	if _, ok := bootIDs[b.mode()]; !ok {
		return &ValidationError{Kind: KindBoot, Field: "mode", Reason: fmt.Sprintf("%q is not one of harddisk, rescue", b.Mode)}
	}
	return nil
}

func (b Boot) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = b.Server
	srv, err := r.getServer(ctx, b.Server)
	if err != nil {
		return Outcome{}, err
	}

	mode := b.mode()
	want := bootIDs[mode]
	if srv.BootID != want {
		if err := r.decide(b.Server, Decision{Action: Update}); err != nil {
			return Outcome{}, err
		}
		if err := r.put(ctx, "set boot", serverPath(b.Server), map[string]int64{"bootId": want}); err != nil {
			return Outcome{}, err
		}
		return r.changed(fmt.Sprintf("%s is now set to boot on %s.", b.Server, mode), nil), nil
	}

	if b.ForceReboot {
		if err := r.decide(b.Server, Decision{Action: Update}); err != nil {
			return Outcome{}, err
		}
		// Fire and forget: success means the reboot request was accepted.
		if err := r.post(ctx, "reboot", serverPath(b.Server, "reboot"), nil, nil); err != nil {
			return Outcome{}, err
		}
		return r.changed(fmt.Sprintf("%s is now rebooting on %s", b.Server, mode), nil), nil
	}

	if err := r.decide(b.Server, Decision{Action: NoopMatch}); err != nil {
		return Outcome{}, err
	}
	return unchanged(fmt.Sprintf("%s already configured for boot on %s", b.Server, mode), nil), nil
}

type Monitoring struct {
	Server  string
	Enabled bool
}

func (m Monitoring) Kind() Kind { return KindMonitoring }

func (m Monitoring) Validate() error {
	if m.Server == "" {
		return required(KindMonitoring, "server")
	}
	return nil
}

func (m Monitoring) verb() string {
	if m.Enabled {
		return "activated"
	}
	return "deactivated"
}

// reconcile writes the monitoring flag and polls until the server reports it.
// The write is reasserted on every attempt that still observes the old value.
func (m Monitoring) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = m.Server
	srv, err := r.getServer(ctx, m.Server)
	if err != nil {
		return Outcome{}, err
	}

	if srv.Monitoring == m.Enabled {
		if err := r.decide(m.Server, Decision{Action: NoopMatch}); err != nil {
			return Outcome{}, err
		}
		return unchanged(fmt.Sprintf("Monitoring already %s on %s", m.verb(), m.Server), nil), nil
	}
	if err := r.decide(m.Server, Decision{Action: Update}); err != nil {
		return Outcome{}, err
	}

	body := map[string]bool{"monitoring": m.Enabled}
	if r.simulate {
		if err := r.put(ctx, "set monitoring", serverPath(m.Server), body); err != nil {
			return Outcome{}, err
		}
		return r.changed(fmt.Sprintf("Monitoring %s on %s", m.verb(), m.Server), nil), nil
	}

	current := srv.Monitoring
	pr, err := r.poll(ctx, func(ctx context.Context, attempt int) (poll.Status, error) {
		if attempt > 1 {
			s, err := r.getServer(ctx, m.Server)
			if err != nil {
				return poll.Status{}, err
			}
			current = s.Monitoring
		}
		value := strconv.FormatBool(current)
		if current == m.Enabled {
			return poll.Status{Done: true, Value: value}, nil
		}
		if err := r.put(ctx, "set monitoring", serverPath(m.Server), body); err != nil {
			return poll.Status{}, err
		}
		return poll.Status{Value: value, Message: "monitoring flag not applied yet"}, nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("could not change monitoring flag: %w", err)
	}
	return r.changed(fmt.Sprintf("Monitoring %s on %s after %d time(s)", m.verb(), m.Server, pr.Attempt), map[string]int{"attempts": pr.Attempt}), nil
}

// Reverse is the PTR record of an IP, pointing at Name.Domain.
type Reverse struct {
	Domain string
	Name   string
	IP     string
}

type ipReverse struct {
	IPReverse string `json:"ipReverse"`
	Reverse   string `json:"reverse"`
}

func (v Reverse) Kind() Kind { return KindReverse }

func (v Reverse) Validate() error {
	if v.Domain == "" {
		return required(KindReverse, "domain")
	}
	if v.Name == "" {
		return required(KindReverse, "name")
	}
	if v.IP == "" {
		return required(KindReverse, "ip")
	}
	if _, err := netip.ParseAddr(v.IP); err != nil {
		return &ValidationError{Kind: KindReverse, Field: "ip", Reason: err.Error()}
	}
	return nil
}

func (v Reverse) fqdn() string {
	return v.Name + "." + v.Domain + "."
}

func (v Reverse) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = v.IP
	fqdn := v.fqdn()

	var current ipReverse
	err := r.engine.gw.Get(ctx, gateway.Path("ip", v.IP, "reverse", v.IP), nil, &current)
	switch {
	case gateway.IsNotFound(err):
		current.Reverse = ""
	case err != nil:
		return Outcome{}, err
	}

	if current.Reverse == fqdn {
		if err := r.decide(v.IP, Decision{Action: NoopMatch}); err != nil {
			return Outcome{}, err
		}
		return unchanged("Reverse already set", current), nil
	}
	if err := r.decide(v.IP, Decision{Action: Update}); err != nil {
		return Outcome{}, err
	}

	body := ipReverse{IPReverse: v.IP, Reverse: fqdn}
	var applied ipReverse
	if err := r.post(ctx, "set reverse", gateway.Path("ip", v.IP, "reverse"), body, &applied); err != nil {
		return Outcome{}, err
	}
	return r.changed(fmt.Sprintf("Reverse %s to %s successfully set", v.IP, fqdn), applied), nil
}

// Terminate requests the termination of a server. OVH confirms it by email.
type Terminate struct {
	Server string
}

func (t Terminate) Kind() Kind { return KindTerminate }

func (t Terminate) Validate() error {
	if t.Server == "" {
		return required(KindTerminate, "server")
	}
	return nil
}

func (t Terminate) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = t.Server
	r.action = Delete
	if err := r.post(ctx, "terminate", serverPath(t.Server, "terminate"), nil, nil); err != nil {
		return Outcome{}, err
	}
	return r.changed(fmt.Sprintf("Terminate %s is done, please confirm via the email sent", t.Server), nil), nil
}

// MAC lists the MAC addresses of a server's network controllers.
type MAC struct {
	Server string
	// LinkType is public or private; empty means public.
	LinkType string
}

func (m MAC) Kind() Kind { return KindMAC }

func (m MAC) linkType() string {
	if m.LinkType == "" {
		return "public"
	}
	return m.LinkType
}

func (m MAC) Validate() error {
	if m.Server == "" {
		return required(KindMAC, "server")
	}
	switch m.linkType() {
	case "public", "private":
		return nil
	}
	return &ValidationError{Kind: KindMAC, Field: "linkType", Reason: fmt.Sprintf("%q is not one of public, private", m.LinkType)}
}

func (m MAC) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = m.Server
	var macs []string
	query := url.Values{"linkType": {m.linkType()}}
	if err := r.engine.gw.Get(ctx, serverPath(m.Server, "networkInterfaceController"), query, &macs); err != nil {
		return Outcome{}, err
	}
	return unchanged(strings.Join(macs, ","), macs), nil
}

const (
	ListDedicated = "dedicated"
	ListTemplates = "templates"
)

// Listing enumerates dedicated servers or personal installation templates.
type Listing struct {
	Target string
}

func (l Listing) Kind() Kind { return KindList }

func (l Listing) Validate() error {
	switch l.Target {
	case ListDedicated, ListTemplates:
		return nil
	case "":
		return required(KindList, "target")
	}
	return &ValidationError{Kind: KindList, Field: "target", Reason: fmt.Sprintf("%s not supported for list", l.Target)}
}

func (l Listing) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = l.Target
	gw := r.engine.gw

	var names []string
	items := []string{}
	switch l.Target {
	case ListDedicated:
		if err := gw.Get(ctx, gateway.Path("dedicated", "server"), nil, &names); err != nil {
			return Outcome{}, err
		}
		for _, name := range names {
			srv, err := r.getServer(ctx, name)
			if err != nil {
				return Outcome{}, err
			}
			items = append(items, srv.Reverse+"="+name)
		}
	case ListTemplates:
		if err := gw.Get(ctx, gateway.Path("me", "installationTemplate"), nil, &names); err != nil {
			return Outcome{}, err
		}
		for _, name := range names {
			if strings.Contains(name, "tmp-mgr") {
				continue
			}
			items = append(items, name)
		}
	}
	return unchanged(fmt.Sprintf("%d %s found", len(items), l.Target), items), nil
}
