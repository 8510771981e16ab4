package config

const (
	defaultStateDir           = "~/.local/share/atlas/state"
	defaultLogDir             = "~/.local/share/atlas/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultWorkerCount        = 4
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultTaskTimeout        = 600
	defaultHeartbeatTimeout   = 300
	defaultMethodTimeout      = 30
	defaultMinContentLength   = 500
	defaultUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultArchiveTodayURL    = "https://archive.ph/newest/{url}"
	defaultWaybackURL         = "https://archive.org/wayback/available?url={url}"
	defaultResurrectURL       = ""
	defaultSimilarity         = 0.87
	defaultPrefixLength       = 1000
	defaultMaxCandidates      = 64
	defaultMinBodyLength      = 120
	defaultBreakerThreshold   = 10
	defaultBreakerCooldown    = 300
)

// Retry policy defaults per error category. The values are operational tuning,
// not derived from measured data; override them in the config file as needed.
func defaultRetryPolicies() map[string]RetryPolicy {
	return map[string]RetryPolicy{
		"timeout":    {MaxRetries: 3, BaseDelay: 60, MaxDelay: 3600, BackoffFactor: 2.0},
		"network":    {MaxRetries: 5, BaseDelay: 30, MaxDelay: 1800, BackoffFactor: 2.0},
		"rate_limit": {MaxRetries: 3, BaseDelay: 300, MaxDelay: 3600, BackoffFactor: 1.5},
		"transient":  {MaxRetries: 3, BaseDelay: 10, MaxDelay: 300, BackoffFactor: 2.0},
		"permanent":  {MaxRetries: 0},
	}
}

func defaultFingerprints() []Fingerprint {
	return []Fingerprint{
		{Phrase: "access denied", Weight: 0.9},
		{Phrase: "403 forbidden", Weight: 0.9},
		{Phrase: "404 not found", Weight: 0.9},
		{Phrase: "page not found", Weight: 0.8},
		{Phrase: "enable javascript", Weight: 0.7},
		{Phrase: "javascript is required", Weight: 0.7},
		{Phrase: "checking your browser", Weight: 0.7},
		{Phrase: "subscribe to continue", Weight: 0.6},
		{Phrase: "subscribe to read", Weight: 0.6},
		{Phrase: "create a free account", Weight: 0.5},
		{Phrase: "sign in to continue", Weight: 0.5},
		{Phrase: "something went wrong", Weight: 0.5},
	}
}

func defaultFeedIndicators() []string {
	return []string{
		"view all episodes",
		"listen on apple podcasts",
		"listen on spotify",
		"subscribe via rss",
		"subscribe on",
		"min listen",
		"episode list",
		"all episodes",
		"show notes",
	}
}

func defaultTruncationPhrases() []string {
	return []string{
		"continue reading",
		"read the full article",
		"read more at",
		"the rest of this article",
	}
}

func defaultGarbagePhrases() []string {
	return []string{
		"lorem ipsum",
		"this domain is for sale",
		"under construction",
		"default web page",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Workflow: Workflow{
			WorkerCount:        defaultWorkerCount,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			TaskTimeout:        defaultTaskTimeout,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Fetch: Fetch{
			MethodTimeout:    defaultMethodTimeout,
			MinContentLength: defaultMinContentLength,
			UserAgent:        defaultUserAgent,
			ArchiveTodayURL:  defaultArchiveTodayURL,
			WaybackURL:       defaultWaybackURL,
			ResurrectURL:     defaultResurrectURL,
		},
		Pathway: Pathway{},
		Quality: Quality{
			Fingerprints:      defaultFingerprints(),
			FeedIndicators:    defaultFeedIndicators(),
			TruncationPhrases: defaultTruncationPhrases(),
		},
		Dedup: Dedup{
			SimilarityThreshold: defaultSimilarity,
			PrefixLength:        defaultPrefixLength,
			MaxCandidates:       defaultMaxCandidates,
			GarbagePhrases:      defaultGarbagePhrases(),
			MinBodyLength:       defaultMinBodyLength,
		},
		Retry: defaultRetryPolicies(),
		Breaker: Breaker{
			FailureThreshold: defaultBreakerThreshold,
			CooldownSeconds:  defaultBreakerCooldown,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
