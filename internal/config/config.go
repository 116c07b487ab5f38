package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultDomainID is the DDS domain a participant joins when none is configured.
	DefaultDomainID = 0
	// DefaultParticipantID selects the unicast port offset per the RTPS port formulas.
	DefaultParticipantID = 0
	// DefaultDomainTag distinguishes otherwise-identical domains sharing a network.
	DefaultDomainTag = ""

	// DefaultSPDPLeaseDuration is how long a discovered participant record is
	// trusted before it must be refreshed by another SPDP announcement.
	DefaultSPDPLeaseDuration = 30 * time.Second
	// DefaultSPDPResendPeriod is how often the local participant multicasts
	// its own SPDP announcement.
	DefaultSPDPResendPeriod = 3 * time.Second
	// DefaultLeaseGrace is added to a remote lease duration before the
	// participant is declared dead, absorbing scheduling jitter.
	DefaultLeaseGrace = 2 * time.Second

	// DefaultHeartbeatPeriod controls how often a reliable stateful writer
	// announces its cache range to matched readers with no unsent changes.
	DefaultHeartbeatPeriod = 200 * time.Millisecond
	// DefaultHeartbeatResponseDelay bounds how long a stateful reader waits
	// before replying to a heartbeat with an ACKNACK.
	DefaultHeartbeatResponseDelay = 50 * time.Millisecond
	// DefaultNackResponseDelay bounds how long a stateful writer waits
	// before resending requested changes after an ACKNACK.
	DefaultNackResponseDelay = 20 * time.Millisecond

	// DefaultParticipantsBasePort (PB) and DefaultDomainGain (DG) are the
	// RTPS standard port-mapping constants from spec.md section 6.
	DefaultParticipantsBasePort = 7400
	DefaultDomainGain           = 250
	DefaultParticipantGain      = 2

	// DefaultMaxMessageSize bounds a single RTPS message the sender will
	// produce before splitting submessages across multiple datagrams.
	DefaultMaxMessageSize = 8192

	// DefaultLogLevel controls verbosity for participant logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "dds-participant.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultIntrospectAddr is where the optional debug websocket feed listens.
	DefaultIntrospectAddr = ":43128"
)

// Config captures all runtime tunables for a DomainParticipant host process.
// Values are sourced from the environment only: spec.md section 1 excludes
// XML/JSON participant-profile loading from the core.
type Config struct {
	DomainID               int
	ParticipantID          int
	DomainTag              string
	SPDPLeaseDuration      time.Duration
	SPDPResendPeriod       time.Duration
	LeaseGrace             time.Duration
	HeartbeatPeriod        time.Duration
	HeartbeatResponseDelay time.Duration
	NackResponseDelay      time.Duration
	MaxMessageSize         int
	IntrospectAddr         string
	IntrospectToken        string
	Logging                LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// SPDPMulticastPort returns the well-known multicast port for SPDP traffic on
// this domain, per the RTPS formula PB + DG*domainID + d0 (d0 = 0).
func (c *Config) SPDPMulticastPort() int {
	return DefaultParticipantsBasePort + DefaultDomainGain*c.DomainID
}

// DefaultUnicastPort returns this participant's default unicast metatraffic
// port, per the RTPS formula PB + DG*domainID + d1 + PG*participantID (d1 = 10).
func (c *Config) DefaultUnicastPort() int {
	const d1 = 10
	return DefaultParticipantsBasePort + DefaultDomainGain*c.DomainID + d1 + DefaultParticipantGain*c.ParticipantID
}

// Load reads the participant configuration from environment variables,
// applying sane defaults and returning descriptive errors for invalid
// overrides.
func Load() (*Config, error) {
	cfg := &Config{
		DomainID:               DefaultDomainID,
		ParticipantID:          DefaultParticipantID,
		DomainTag:              getString("DDS_DOMAIN_TAG", DefaultDomainTag),
		SPDPLeaseDuration:      DefaultSPDPLeaseDuration,
		SPDPResendPeriod:       DefaultSPDPResendPeriod,
		LeaseGrace:             DefaultLeaseGrace,
		HeartbeatPeriod:        DefaultHeartbeatPeriod,
		HeartbeatResponseDelay: DefaultHeartbeatResponseDelay,
		NackResponseDelay:      DefaultNackResponseDelay,
		MaxMessageSize:         DefaultMaxMessageSize,
		IntrospectAddr:         getString("DDS_INTROSPECT_ADDR", DefaultIntrospectAddr),
		IntrospectToken:        strings.TrimSpace(os.Getenv("DDS_INTROSPECT_TOKEN")),
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("DDS_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("DDS_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("DDS_DOMAIN_ID")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 || value > 232 {
			problems = append(problems, fmt.Sprintf("DDS_DOMAIN_ID must be an integer in [0,232], got %q", raw))
		} else {
			cfg.DomainID = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_PARTICIPANT_ID")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("DDS_PARTICIPANT_ID must be a non-negative integer, got %q", raw))
		} else {
			cfg.ParticipantID = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_SPDP_LEASE_DURATION")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("DDS_SPDP_LEASE_DURATION must be a positive duration, got %q", raw))
		} else {
			cfg.SPDPLeaseDuration = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_SPDP_RESEND_PERIOD")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("DDS_SPDP_RESEND_PERIOD must be a positive duration, got %q", raw))
		} else {
			cfg.SPDPResendPeriod = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_HEARTBEAT_PERIOD")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("DDS_HEARTBEAT_PERIOD must be a positive duration, got %q", raw))
		} else {
			cfg.HeartbeatPeriod = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_HEARTBEAT_RESPONSE_DELAY")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("DDS_HEARTBEAT_RESPONSE_DELAY must be a positive duration, got %q", raw))
		} else {
			cfg.HeartbeatResponseDelay = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_NACK_RESPONSE_DELAY")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("DDS_NACK_RESPONSE_DELAY must be a positive duration, got %q", raw))
		} else {
			cfg.NackResponseDelay = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_MAX_MESSAGE_SIZE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("DDS_MAX_MESSAGE_SIZE must be a positive integer, got %q", raw))
		} else {
			cfg.MaxMessageSize = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("DDS_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("DDS_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("DDS_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DDS_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("DDS_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
