package config

import "time"

// Defaults applied to unset fields.
const (
	DefaultServerAddr      = ":3978"
	DefaultMetricsAddr     = ":9090"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultMaxBodyBytes    = 64 << 10
	DefaultRedisAddr       = "localhost:6379"
	DefaultRedisPrefix     = "botservice"
	DefaultStateTTL        = 24 * time.Hour
	DefaultProfileTTL      = 30 * 24 * time.Hour
	DefaultMinScore        = 0.5
	DefaultEscalationPhone = "0300 790 6165"
	DefaultEscalationHours = "8.30am to 6.30pm, Monday to Friday"
	DefaultServiceName     = "botservice"
)

// DefaultKeywords is the phrase table used when no LUIS app is configured
// and the manifest does not supply keywords.
func DefaultKeywords() []KeywordRule {
	return []KeywordRule{
		{Intent: "MakeAPayment", Phrases: []string{"make a payment", "pay", "payment", "pay my bill"}},
		{Intent: "RenewMyTvLicense", Phrases: []string{"renew", "renew my tv licence", "renew my tv license", "renewal"}},
		{Intent: "CashPayment", Phrases: []string{"cash", "pay by cash", "pay with cash"}},
		{Intent: "DebitCardPayment", Phrases: []string{"debit card", "direct debit", "card"}},
		{Intent: "SSPPayment", Phrases: []string{"ssp", "ssp payment card", "payment card"}},
		{Intent: "CantUsePayPoint", Phrases: []string{"paypoint", "can't use paypoint", "cannot use paypoint"}},
	}
}

// Default returns a runnable configuration: keyword NLU, in-memory state,
// metrics on, tracing off.
func Default() *BotConfig {
	cfg := &BotConfig{Name: DefaultServiceName}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. The NLU type is chosen here: LUIS when its
// credentials are present, otherwise the keyword table.
func (c *BotConfig) ApplyDefaults() {
	if c.NLU.Type == "" {
		if c.NLU.LUIS.Configured() {
			c.NLU.Type = NLUTypeLUIS
		} else {
			c.NLU.Type = NLUTypeKeyword
		}
	}
	if c.NLU.MinScore == 0 {
		c.NLU.MinScore = DefaultMinScore
	}
	if c.NLU.Type == NLUTypeKeyword && len(c.NLU.Keywords) == 0 {
		c.NLU.Keywords = DefaultKeywords()
	}

	if c.StateStore.Type == "" {
		c.StateStore.Type = StoreTypeMemory
	}
	r := &c.StateStore.Redis
	if r.Addr == "" {
		r.Addr = DefaultRedisAddr
	}
	if r.Prefix == "" {
		r.Prefix = DefaultRedisPrefix
	}
	if r.TTL == 0 {
		r.TTL = Duration(DefaultStateTTL)
	}
	if r.ProfileTTL == 0 {
		r.ProfileTTL = Duration(DefaultProfileTTL)
	}

	s := &c.Server
	if s.Addr == "" {
		s.Addr = DefaultServerAddr
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.RateLimit.Enabled() && s.RateLimit.Burst == 0 {
		s.RateLimit.Burst = 1
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}

	if c.Content.EscalationPhone == "" {
		c.Content.EscalationPhone = DefaultEscalationPhone
	}
	if c.Content.EscalationHours == "" {
		c.Content.EscalationHours = DefaultEscalationHours
	}
}
