package resolver

import (
	"github.com/spf13/viper"

	"github.com/northwing/recoadapter/pkg/site"
)

// ViperProperties is a site.NamedProperties backed by a viper snapshot,
// taken once when NewViperProperties is called and never re-read from the
// source viper afterwards.
type ViperProperties struct {
	v *viper.Viper
}

// NewViperProperties copies the current values out of v into an isolated
// snapshot so later mutations of v are invisible to this session.
func NewViperProperties(v *viper.Viper) *ViperProperties {
	snapshot := viper.New()
	for key, value := range v.AllSettings() {
		snapshot.Set(key, value)
	}
	return &ViperProperties{v: snapshot}
}

func (p *ViperProperties) GetString(key string) string {
	return p.v.GetString(key)
}

func (p *ViperProperties) GetBool(key string, def bool) bool {
	if !p.v.IsSet(key) {
		return def
	}
	return p.v.GetBool(key)
}

var _ site.NamedProperties = (*ViperProperties)(nil)
