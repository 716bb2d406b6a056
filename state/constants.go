package state

import "time"

const (
	// INF is the advertised cost of an unreachable destination.
	INF = uint32(999)

	// MaxBootstrapSize is the largest bootstrap message read from the emulator.
	MaxBootstrapSize = 4096
)

var (
	UpdateDelay  = time.Millisecond * 300
	RecvTimeout  = time.Millisecond * 500
	DialTimeout  = time.Second * 5
	SilenceTTL   = time.Second * 5
	LogDir       = "."
	JournalName  = "log_%s.txt"
	DefaultDebug = "127.0.0.1:6060"
)
