package reconcile

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/evanofslack/ovh-reconcile/internal/gateway"
)

// Vrack is the membership of a dedicated server in a vrack.
type Vrack struct {
	Server  string
	Vrack   string
	Present bool
}

type vrackTopology int

const (
	// topologyLegacy servers are attached to a vrack by server name.
	topologyLegacy vrackTopology = iota
	// topologyInterface servers are attached through a virtual network interface.
	topologyInterface
)

type vrackInterfaceDetails struct {
	DedicatedServer          string `json:"dedicatedServer"`
	DedicatedServerInterface string `json:"dedicatedServerInterface"`
}

// vrackState is the server's membership as seen through its topology.
type vrackState struct {
	topology   vrackTopology
	interfaces []string
	// members are interface ids for topologyInterface, the server name for topologyLegacy.
	members []string
}

func (v Vrack) Kind() Kind { return KindVrack }

func (v Vrack) Validate() error {
	if v.Server == "" {
		return required(KindVrack, "server")
	}
	if v.Vrack == "" {
		return required(KindVrack, "vrack")
	}
	return nil
}

func (v Vrack) vrackPath(sub ...string) string {
	return gateway.Path(append([]string{"vrack", v.Vrack}, sub...)...)
}

// fetchVrackState probes the server's vrack interfaces first. A server without
// any belongs to the legacy topology, whose per-server list is authoritative.
func (v Vrack) fetchVrackState(ctx context.Context, gw gateway.Gateway) (vrackState, error) {
	var st vrackState
	query := url.Values{"mode": {"vrack"}}
	if err := gw.Get(ctx, serverPath(v.Server, "virtualNetworkInterface"), query, &st.interfaces); err != nil {
		return st, err
	}

	if len(st.interfaces) > 0 {
		st.topology = topologyInterface
		var details []vrackInterfaceDetails
		if err := gw.Get(ctx, v.vrackPath("dedicatedServerInterfaceDetails"), nil, &details); err != nil {
			return st, err
		}
		for _, d := range details {
			if d.DedicatedServer == v.Server {
				st.members = append(st.members, d.DedicatedServerInterface)
			}
		}
		return st, nil
	}

	st.topology = topologyLegacy
	var servers []string
	if err := gw.Get(ctx, v.vrackPath("dedicatedServer"), nil, &servers); err != nil {
		return st, err
	}
	for _, s := range servers {
		if s == v.Server {
			st.members = append(st.members, s)
		}
	}
	return st, nil
}

func compareVrack(v Vrack, st vrackState) Decision {
	member := len(st.members) > 0
	switch {
	case v.Present && member:
		return Decision{Action: NoopMatch, IDs: st.members}
	case !v.Present && !member:
		return Decision{Action: NoopAbsent}
	case !v.Present:
		return Decision{Action: Delete, IDs: st.members}
	case st.topology == topologyInterface && len(st.interfaces) > 1:
		return Decision{Action: Ambiguous, IDs: st.interfaces}
	default:
		return Decision{Action: Create}
	}
}

func (v Vrack) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = v.Server
	st, err := v.fetchVrackState(ctx, r.engine.gw)
	if err != nil {
		return Outcome{}, err
	}

	decision := compareVrack(v, st)
	if err := r.decide(fmt.Sprintf("%s on %s", v.Server, v.Vrack), decision); err != nil {
		return Outcome{}, err
	}

	switch decision.Action {
	case NoopMatch:
		return unchanged(fmt.Sprintf("%s is already registered on %s", v.Server, v.Vrack), nil), nil

	case NoopAbsent:
		return unchanged(fmt.Sprintf("No %s in %s", v.Server, v.Vrack), nil), nil

	case Create:
		var task map[string]any
		var err error
		if st.topology == topologyInterface {
			body := map[string]string{"dedicatedServerInterface": st.interfaces[0]}
			err = r.post(ctx, "add interface", v.vrackPath("dedicatedServerInterface"), body, &task)
		} else {
			body := map[string]string{"dedicatedServer": v.Server}
			err = r.post(ctx, "add server", v.vrackPath("dedicatedServer"), body, &task)
		}
		if err != nil {
			return Outcome{}, err
		}
		return r.changed(fmt.Sprintf("%s successfully added to %s", v.Server, v.Vrack), task), nil

	case Delete:
		for _, id := range decision.IDs {
			var err error
			if st.topology == topologyInterface {
				err = r.del(ctx, "remove interface", v.vrackPath("dedicatedServerInterface", id))
			} else {
				err = r.del(ctx, "remove server", v.vrackPath("dedicatedServer", id))
			}
			if err != nil {
				return Outcome{}, err
			}
		}
		return r.changed(fmt.Sprintf("%s successfully removed from %s (%s)", v.Server, v.Vrack, strings.Join(decision.IDs, ",")), decision.IDs), nil
	}
	return Outcome{}, fmt.Errorf("unexpected action %s", decision.Action)
}
