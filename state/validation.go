package state

import (
	"fmt"
	"net/netip"
	"os"
	"regexp"
)

// node ids travel inside "<id>|<dest>:<cost>,..." messages, so the separators are reserved
var idPattern = regexp.MustCompile(`^[^|:,\s]+$`)

func NodeIdValidator(id NodeId) error {
	s := string(id)
	if !idPattern.MatchString(s) {
		return fmt.Errorf("%q is not a valid node id, must match pattern %s", s, idPattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func DirValidator(s string) error {
	info, err := os.Stat(s)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s)
	}
	return nil
}

func BindValidator(s string) error {
	_, err := netip.ParseAddrPort(s)
	return err
}

func LocalConfigValidator(cfg *LocalCfg) error {
	if cfg.UpdateInterval.Duration() <= 0 {
		return fmt.Errorf("update_interval must be positive, got %s", cfg.UpdateInterval)
	}
	if cfg.RecvTimeout.Duration() <= 0 {
		return fmt.Errorf("recv_timeout must be positive, got %s", cfg.RecvTimeout)
	}
	if cfg.DialTimeout.Duration() <= 0 {
		return fmt.Errorf("dial_timeout must be positive, got %s", cfg.DialTimeout)
	}
	if cfg.SilenceTTL.Duration() <= 0 {
		return fmt.Errorf("silence_ttl must be positive, got %s", cfg.SilenceTTL)
	}
	if err := DirValidator(cfg.LogDir); err != nil {
		return fmt.Errorf("log_dir: %w", err)
	}
	if cfg.DebugAddr != "" {
		if err := BindValidator(cfg.DebugAddr); err != nil {
			return fmt.Errorf("debug_addr: %w", err)
		}
	}
	return nil
}
