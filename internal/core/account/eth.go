package account

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// ethDerivationPath is m/44'/60'/0'/0/0 (BIP-44 coin type 60 = Ethereum).
var ethDerivationPath = []uint32{
	44 + hdkeychain.HardenedKeyStart,
	60 + hdkeychain.HardenedKeyStart,
	0 + hdkeychain.HardenedKeyStart,
	0,
	0,
}

// deriveETHPublicKey derives the Ethereum sub-account's public key from the
// master key and returns it in 65-byte uncompressed form (0x04 || X || Y),
// matching the account blob's fixed eth_size == 65.
func deriveETHPublicKey(master *hdkeychain.ExtendedKey) ([]byte, error) {
	key := master
	var err error
	for _, idx := range ethDerivationPath {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, fmt.Errorf("account: eth key derivation failed: %w", err)
		}
	}
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("account: eth public key failed: %w", err)
	}
	return pub.SerializeUncompressed(), nil
}
