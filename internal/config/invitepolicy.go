package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// InvitePolicy controls invitation issuing for every organization.
type InvitePolicy struct {
	TTL          time.Duration `mapstructure:"ttl"`
	AllowedRoles []string      `mapstructure:"allowedRoles"`
	OrgRate      float64       `mapstructure:"orgRate"`
	OrgBurst     int           `mapstructure:"orgBurst"`
}

func DefaultInvitePolicy() InvitePolicy {
	return InvitePolicy{
		TTL:          7 * 24 * time.Hour,
		AllowedRoles: []string{"admin", "member"},
		OrgRate:      0.5,
		OrgBurst:     20,
	}
}

// RoleAllowed reports whether the policy permits inviting with the given role.
func (p InvitePolicy) RoleAllowed(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, allowed := range p.AllowedRoles {
		if strings.EqualFold(strings.TrimSpace(allowed), role) {
			return true
		}
	}
	return false
}

// InvitePolicyHolder serves the current policy and hot-reloads it from disk.
type InvitePolicyHolder struct {
	current atomic.Value // holds InvitePolicy
}

func NewInvitePolicyHolder() (*InvitePolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("invites")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/workdesk/config")
	v.AddConfigPath("/etc/workdesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("WORKDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultInvitePolicy()
		v.SetDefault("invites.ttl", defaults.TTL)
		v.SetDefault("invites.allowedRoles", defaults.AllowedRoles)
		v.SetDefault("invites.orgRate", defaults.OrgRate)
		v.SetDefault("invites.orgBurst", defaults.OrgBurst)
	}

	var policy InvitePolicy
	if err := v.UnmarshalKey("invites", &policy); err != nil {
		return nil, err
	}
	if err := validateInvitePolicy(policy); err != nil {
		return nil, err
	}

	holder := &InvitePolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InvitePolicy
		if err := v.UnmarshalKey("invites", &updated); err != nil {
			log.Printf("[invite-policy] reload failed: %v", err)
			return
		}
		if err := validateInvitePolicy(updated); err != nil {
			log.Printf("[invite-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[invite-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticInvitePolicyHolder wraps a fixed policy, without file watching.
func NewStaticInvitePolicyHolder(policy InvitePolicy) *InvitePolicyHolder {
	holder := &InvitePolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func (h *InvitePolicyHolder) Get() InvitePolicy {
	return h.current.Load().(InvitePolicy)
}

func validateInvitePolicy(policy InvitePolicy) error {
	if policy.TTL <= 0 {
		return errors.New("invites.ttl must be positive")
	}
	if len(policy.AllowedRoles) == 0 {
		return errors.New("invites.allowedRoles cannot be empty")
	}
	return nil
}
