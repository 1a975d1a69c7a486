package synth

import "strings"

// Provider choice names as stored in user configuration.
const (
	ChoiceCloud = "cloud"
	ChoiceLocal = "local"
)

// Dispatcher resolves a user's provider choice to a concrete Provider.
type Dispatcher struct {
	cloud Provider
	local Provider
}

func NewDispatcher(cloud, local Provider) *Dispatcher {
	return &Dispatcher{cloud: cloud, local: local}
}

// Select returns the provider for the given choice. An empty or unrecognized
// choice selects the cloud provider.
func (d *Dispatcher) Select(choice string) Provider {
	if strings.EqualFold(strings.TrimSpace(choice), ChoiceLocal) {
		return d.local
	}
	return d.cloud
}
