package pebble

// key codes of the epoch store. Every key is a code byte optionally followed by a suffix.
const (
	codeEpochState        byte = 0x01
	codeCapabilities      byte = 0x02
	codeUpgradePending    byte = 0x03
	codeVerifiedOutput    byte = 0x04
	codeVerifiedCount     byte = 0x05
	codeLastBuiltSequence byte = 0x06
)

var (
	epochStateKey     = []byte{codeEpochState}
	capabilitiesKey   = []byte{codeCapabilities}
	upgradePendingKey = []byte{codeUpgradePending}
	verifiedCountKey  = []byte{codeVerifiedCount}
)
