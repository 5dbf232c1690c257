package dwallet

// AuthorityCapabilities is announced once per epoch by every validator through consensus.
// Authorities use the announcements to agree on protocol upgrades.
type AuthorityCapabilities struct {
	Authority         AuthorityName
	Epoch             EpochID
	SupportedVersions SupportedProtocolVersions
	NodeVersion       string
	AvailableMemory   uint64
}

// NewAuthorityCapabilities returns the capabilities of this binary for epoch.
func NewAuthorityCapabilities(authority AuthorityName, epoch EpochID, nodeVersion string, availableMemory uint64) *AuthorityCapabilities {
	return &AuthorityCapabilities{
		Authority:         authority,
		Epoch:             epoch,
		SupportedVersions: SupportedVersions,
		NodeVersion:       nodeVersion,
		AvailableMemory:   availableMemory,
	}
}

// ProtocolUpgrade is the params message emitted once authorities holding a quorum of voting
// power support the next protocol version.
type ProtocolUpgrade struct {
	Epoch   EpochID
	Version ProtocolVersion
}
