package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CampaignAddressFromReceipt looks for the campaign-created event and returns the address carried in its
// first indexed argument. Logs emitted by other contracts are ignored when emitter is non-zero.
// It returns nil when no log matches.
func CampaignAddressFromReceipt(receipt *types.Receipt, topic common.Hash, emitter common.Address) *string {
	if receipt == nil {
		return nil
	}
	for _, log := range receipt.Logs {
		if log == nil || len(log.Topics) < 2 || log.Topics[0] != topic {
			continue
		}
		if emitter != (common.Address{}) && log.Address != emitter {
			continue
		}
		addr := strings.ToLower(common.BytesToAddress(log.Topics[1].Bytes()).Hex())
		return &addr
	}
	return nil
}
