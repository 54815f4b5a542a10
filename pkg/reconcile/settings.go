package reconcile

import (
	"github.com/goccy/go-yaml"

	"github.com/toriidata/filermap/pkg/errors"
)

// Settings is the YAML-configurable part of the engine: the registration
// guard's exemption list and overrides for the authority priority table.
type Settings struct {
	ExemptSegments []string         `yaml:"exempt_segments"`
	Authorities    []FieldAuthority `yaml:"authorities"`
}

// ParseSettings decodes engine settings from YAML. Absent sections keep
// the compiled-in defaults.
func ParseSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.WrapParse("yaml", "reconcile settings", err)
	}
	return &s, nil
}

// Guard builds the registration guard from the settings. An empty list
// falls back to the default exemptions.
func (s *Settings) Guard() *Guard {
	return NewGuard(s.ExemptSegments)
}

// AuthorityProvider builds the authority table from the settings, or nil
// when no overrides are configured.
func (s *Settings) AuthorityProvider() AuthorityProvider {
	if len(s.Authorities) == 0 {
		return nil
	}
	ca := NewCustomAuthorities()
	for _, auth := range s.Authorities {
		ca.AddAuthority(auth)
	}
	return ca
}
