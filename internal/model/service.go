package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Service is the kind of facility an optimization run targeted.
type Service string

const (
	ServiceArts     Service = "arts"
	ServiceHospital Service = "hospital"
)

// Services lists every supported service kind.
var Services = []Service{ServiceArts, ServiceHospital}

// ParseService accepts the service names used by the UI and artifact paths.
func ParseService(v string) (Service, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "arts", "arts facilities", "art":
		return ServiceArts, nil
	case "hospital", "hospitals":
		return ServiceHospital, nil
	}
	return "", eris.Errorf("model: unknown service %q", v)
}

// Label returns the display label for the service.
func (s Service) Label() string {
	switch s {
	case ServiceArts:
		return "Arts Facilities"
	case ServiceHospital:
		return "Hospitals"
	}
	return string(s)
}

// Key is the (state, service) identity used for all lookups and caching.
type Key struct {
	State   State   `json:"state" yaml:"state"`
	Service Service `json:"service" yaml:"service"`
}

// NewKey builds a Key.
func NewKey(state State, service Service) Key {
	return Key{State: state, Service: service}
}

func (k Key) String() string {
	return k.State.String() + "/" + string(k.Service)
}
