package provider

import (
	"encoding/hex"
	"strings"

	"govtoken-analytics/internal/domain"
)

// decodeHexAddress decodes a "0x"-prefixed hex address (the common case
// across etherscan/thegraph/alchemy/infura/ethplorer, all EVM-indexed
// sources) into the raw-byte domain.Address representation. Malformed
// input decodes to nil so callers can drop the record during
// normalization rather than panic at the adapter boundary.
func decodeHexAddress(s string) domain.Address {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return domain.Address(b)
}
