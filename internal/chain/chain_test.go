package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	testTopic   = crypto.Keccak256Hash([]byte("CampaignCreated(address,address)"))
	testFactory = common.HexToAddress("0x00000000000000000000000000000000000000fa")
)

func TestCampaignAddressFromReceipt(t *testing.T) {
	campaign := common.HexToAddress("0x00000000000000000000000000000000000000C1")
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: testFactory, Topics: []common.Hash{crypto.Keccak256Hash([]byte("Other()")), common.BytesToHash(campaign.Bytes())}},
		{Address: testFactory, Topics: []common.Hash{testTopic, common.BytesToHash(campaign.Bytes())}},
	}}

	got := CampaignAddressFromReceipt(receipt, testTopic, testFactory)
	require.NotNil(t, got)
	require.Equal(t, "0x00000000000000000000000000000000000000c1", *got)
}

func TestCampaignAddressFromReceipt_NoMatch(t *testing.T) {
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: testFactory, Topics: []common.Hash{crypto.Keccak256Hash([]byte("Other()"))}},
		{Address: common.HexToAddress("0x01"), Topics: []common.Hash{testTopic, {}}},
	}}

	require.Nil(t, CampaignAddressFromReceipt(receipt, testTopic, testFactory))
	require.Nil(t, CampaignAddressFromReceipt(nil, testTopic, testFactory))
}

func TestContractsPack(t *testing.T) {
	c, err := NewContracts(testFactory, testTopic)
	require.NoError(t, err)

	data, err := c.PackCreateCampaign("bafy", "health", "Clinic", big.NewInt(1e18), 30)
	require.NoError(t, err)
	require.Equal(t, c.factory.Methods["createCampaign"].ID, data[:4])

	data, err = c.PackDonate()
	require.NoError(t, err)
	require.Len(t, data, 4)

	data, err = c.PackWithdraw(big.NewInt(5))
	require.NoError(t, err)
	require.Len(t, data, 4+32)

	_, err = c.PackCreateMilestone("Phase 1", "bafy2", big.NewInt(10))
	require.NoError(t, err)
}

func TestParseAddress(t *testing.T) {
	addr, lower, err := ParseAddress("0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	require.NoError(t, err)
	require.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", lower)
	require.Equal(t, common.HexToAddress(lower), addr)

	_, _, err = ParseAddress("not-an-address")
	require.Error(t, err)
}
