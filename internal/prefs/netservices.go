package prefs

import (
	"fmt"
	"sort"
	"strings"

	"howett.net/plist"
)

// PruneOptions selects the file to read, where to write, and which
// interfaces to drop
type PruneOptions struct {
	PreferencesPath string
	OutputPath      string
	InterfacePrefix string
}

// ServiceDecision is the verdict for one named network service
type ServiceDecision struct {
	ID      string
	Name    string
	Device  string // empty when the service has no interface device
	Removed bool
}

// String renders the decision the way the operator sees it,
// e.g. "CircuitPython (usbmodem1101) - Remove"
func (d ServiceDecision) String() string {
	verdict := "Keep"
	if d.Removed {
		verdict = "Remove"
	}
	if d.Device == "" {
		return fmt.Sprintf("%s - %s", d.Name, verdict)
	}
	return fmt.Sprintf("%s (%s) - %s", d.Name, d.Device, verdict)
}

// PruneResult lists every named service in service id order
type PruneResult struct {
	Services   []ServiceDecision
	OutputPath string
}

// Removed returns the services dropped from the output file
func (r *PruneResult) Removed() []ServiceDecision {
	var out []ServiceDecision
	for _, s := range r.Services {
		if s.Removed {
			out = append(out, s)
		}
	}
	return out
}

// PruneNetworkServices reads a SystemConfiguration preferences file and
// writes a copy without the services whose interface device starts with
// the prefix. Every board ever plugged in leaves such a service behind.
// The source file is never modified; installing the output is left to the
// operator since it needs root.
func PruneNetworkServices(opts PruneOptions) (*PruneResult, error) {
	if opts.InterfacePrefix == "" {
		return nil, ErrEmptyPrefix
	}

	root, _, err := readPlist(opts.PreferencesPath)
	if err != nil {
		return nil, err
	}

	services, ok := dict(root, "NetworkServices")
	if !ok {
		return nil, fmt.Errorf("%w in %s", ErrNoNetworkServices, opts.PreferencesPath)
	}

	ids := make([]string, 0, len(services))
	for id := range services {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := &PruneResult{OutputPath: opts.OutputPath}
	for _, id := range ids {
		service, ok := services[id].(map[string]interface{})
		if !ok {
			continue
		}
		name, ok := str(service, "UserDefinedName")
		if !ok {
			continue
		}

		decision := ServiceDecision{ID: id, Name: name}
		if iface, ok := dict(service, "Interface"); ok {
			decision.Device, _ = str(iface, "DeviceName")
		}
		if strings.HasPrefix(decision.Device, opts.InterfacePrefix) {
			decision.Removed = true
			delete(services, id)
		}
		result.Services = append(result.Services, decision)
	}

	if err := writePlist(opts.OutputPath, root, plist.XMLFormat); err != nil {
		return nil, err
	}
	return result, nil
}
