// Package version identifies the dosgi framing protocol revision and maps it
// to the ALPN identifiers negotiated on tls:// transports.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the framing protocol revision implemented by this module.
const Current = "1.0"

// ALPNPrefix precedes the major revision in ALPN identifiers ("dosgi/1").
const ALPNPrefix = "dosgi/"

// Protocol is a parsed "major.minor" protocol revision.
type Protocol struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" revision string.
func Parse(s string) (Protocol, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok || strings.Contains(minor, ".") {
		return Protocol{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	maj, err := strconv.ParseUint(major, 10, 16)
	if err != nil {
		return Protocol{}, fmt.Errorf("invalid version %q: bad major component", s)
	}
	mnr, err := strconv.ParseUint(minor, 10, 16)
	if err != nil {
		return Protocol{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return Protocol{Major: uint16(maj), Minor: uint16(mnr)}, nil
}

// MustCurrent returns the parsed Current revision.
func MustCurrent() Protocol {
	p, err := Parse(Current)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the revision as "major.minor".
func (p Protocol) String() string {
	return fmt.Sprintf("%d.%d", p.Major, p.Minor)
}

// Compatible reports whether both revisions share a major number. Minor
// revisions never change the frame layout.
func (p Protocol) Compatible(other Protocol) bool {
	return p.Major == other.Major
}

// ALPN returns the ALPN identifier of the revision's major number.
func (p Protocol) ALPN() string {
	return ALPNProtocol(p.Major)
}

// ALPNProtocol returns the ALPN identifier for a major revision.
func ALPNProtocol(major uint16) string {
	return ALPNPrefix + strconv.FormatUint(uint64(major), 10)
}

// MajorFromALPN extracts the major revision from an ALPN identifier.
func MajorFromALPN(alpn string) (uint16, error) {
	suffix, ok := strings.CutPrefix(alpn, ALPNPrefix)
	if !ok {
		return 0, fmt.Errorf("not a dosgi ALPN protocol: %q", alpn)
	}
	if suffix == "" {
		return 0, fmt.Errorf("empty major version in ALPN: %q", alpn)
	}

	major, err := strconv.ParseUint(suffix, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in ALPN %q: %w", alpn, err)
	}
	return uint16(major), nil
}

// SupportedALPNProtocols returns the ALPN identifiers offered in handshakes,
// most preferred first.
func SupportedALPNProtocols() []string {
	return []string{MustCurrent().ALPN()}
}
