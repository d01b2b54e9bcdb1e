// Package config loads the voicemail service's CLI flags and environment
// variable overrides, following the pack's flag-then-env-override pattern.
package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Config holds the fully resolved process configuration.
type Config struct {
	Port         int
	RTPStartPort int
	Echo         bool
	Rec          bool
	ExternalIP   string
	SIPServer    string
	User         string
	Password     string
	DataDir      string
	LogLevel     string
	HTTPAddr     string

	AssemblyAIAPIKey   string
	AssemblyAILanguage string

	GoogleCloudProjectID  string
	GoogleCloudRegion     string
	GoogleLanguageCodes   string
	GoogleCredentialsPath string

	SNSTopicARN string
	SNSSenderID string
}

// Load parses CLI flags, then layers environment variable overrides on
// top, matching the pack's config loaders.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("voicemaild", flag.ContinueOnError)

	cfg := &Config{}
	fs.IntVar(&cfg.Port, "port", 5060, "SIP listening port")
	fs.IntVar(&cfg.RTPStartPort, "rtp-start-port", 5061, "base of the even-port RTP probe range")
	fs.BoolVar(&cfg.Echo, "echo", false, "run RTP echo instead of recording")
	fs.BoolVar(&cfg.Rec, "rec", false, "record caller audio to the database")
	fs.StringVar(&cfg.ExternalIP, "external-ip", "", "advertised host in SDP and SIP Contact (auto-detected if unset)")
	fs.StringVar(&cfg.SIPServer, "sip-server", "", "registrar URI or host; sip: prefix is added if missing")
	fs.StringVar(&cfg.User, "user", "", "SIP username")
	fs.StringVar(&cfg.Password, "password", "", "SIP password")
	fs.StringVar(&cfg.DataDir, "data-dir", "./data", "SQLite database directory")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log/slog level (debug, info, warn, error)")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", "0.0.0.0:8080", "HTTP browsing surface bind address")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	overrideInt(&cfg.Port, "PORT")
	overrideInt(&cfg.RTPStartPort, "RTP_START_PORT")
	overrideString(&cfg.ExternalIP, "EXTERNAL_IP")
	overrideString(&cfg.SIPServer, "SIP_SERVER")
	overrideString(&cfg.User, "SIP_USERNAME")
	overrideString(&cfg.Password, "SIP_PASSWORD")
	overrideString(&cfg.DataDir, "DATA_DIR")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.HTTPAddr, "HTTP_ADDR")

	if cfg.ExternalIP == "" {
		cfg.ExternalIP = primaryInterfaceIP()
	}
	if cfg.SIPServer != "" && !strings.Contains(cfg.SIPServer, ":") {
		cfg.SIPServer = "sip:" + cfg.SIPServer
	} else if cfg.SIPServer != "" && !strings.HasPrefix(cfg.SIPServer, "sip:") {
		cfg.SIPServer = "sip:" + cfg.SIPServer
	}

	cfg.AssemblyAIAPIKey = os.Getenv("ASSEMBLYAI_API_KEY")
	cfg.AssemblyAILanguage = envOr("ASSEMBLYAI_LANGUAGE_CODE", "en")

	cfg.GoogleCloudProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT_ID")
	cfg.GoogleCloudRegion = os.Getenv("GOOGLE_CLOUD_REGION")
	cfg.GoogleLanguageCodes = envOr("GOOGLE_APPLICATION_LANGUAGE_CODES", "en-US")
	cfg.GoogleCredentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")

	cfg.SNSTopicARN = os.Getenv("AWS_SNS_TOPIC_ARN")
	cfg.SNSSenderID = os.Getenv("AWS_SNS_SENDER_ID")

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: invalid port %d", cfg.Port)
	}
	if cfg.RTPStartPort < 1 || cfg.RTPStartPort > 65535 {
		return nil, fmt.Errorf("config: invalid rtp-start-port %d", cfg.RTPStartPort)
	}

	return cfg, nil
}

func overrideInt(dst *int, envVar string) {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideString(dst *string, envVar string) {
	if v := os.Getenv(envVar); v != "" {
		*dst = v
	}
}

func envOr(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

// primaryInterfaceIP returns the first non-loopback IPv4 address found on
// an up interface, falling back to the loopback address.
func primaryInterfaceIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return "127.0.0.1"
}
