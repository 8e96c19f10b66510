package plan

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CatalogHolder exposes the current plan catalog, reloading it when the
// backing config file changes. Allowance changes take effect on the next
// entitlement check; no restart or balance migration is required.
type CatalogHolder struct {
	current atomic.Value // holds Catalog
}

// NewCatalogHolder loads plans.yml (volume mount, system config, or cwd)
// and falls back to the compiled defaults when no file exists.
func NewCatalogHolder() (*CatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/creditd/config")
	v.AddConfigPath("/etc/creditd")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CREDITD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultCatalog()
		for tier, allowance := range defaults {
			v.SetDefault("plans."+strings.ToLower(string(tier)), allowance)
		}
	}

	cfg, err := unmarshalCatalog(v)
	if err != nil {
		return nil, err
	}
	if err := validateCatalog(cfg); err != nil {
		return nil, err
	}

	holder := &CatalogHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalCatalog(v)
		if err != nil {
			log.Printf("[plan-catalog] reload failed: %v", err)
			return
		}
		if err := validateCatalog(updated); err != nil {
			log.Printf("[plan-catalog] invalid catalog ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-catalog] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCatalogHolder pins the holder to cfg without file watching.
func NewStaticCatalogHolder(cfg Catalog) *CatalogHolder {
	holder := &CatalogHolder{}
	holder.current.Store(cfg)
	return holder
}

// Current returns the active catalog.
func (h *CatalogHolder) Current() Catalog {
	return h.current.Load().(Catalog)
}

func unmarshalCatalog(v *viper.Viper) (Catalog, error) {
	var raw map[string]Allowance
	if err := v.UnmarshalKey("plans", &raw); err != nil {
		return nil, err
	}
	cfg := Catalog{}
	for name, allowance := range raw {
		cfg[Tier(strings.ToUpper(strings.TrimSpace(name)))] = allowance
	}
	return cfg, nil
}

func validateCatalog(cfg Catalog) error {
	if _, ok := cfg[TierFree]; !ok {
		return errors.New("plans.free is required")
	}
	for tier, allowance := range cfg {
		if allowance.AITokensMonthly < 0 || allowance.EmailSendsDaily < 0 || allowance.MaxContacts < 0 {
			return errors.New("plan allowances must not be negative: " + string(tier))
		}
	}
	return nil
}
