package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const factoryABI = `[
	{"type":"function","name":"createCampaign","stateMutability":"nonpayable",
	 "inputs":[{"name":"contentRef","type":"string"},{"name":"category","type":"string"},{"name":"title","type":"string"},
	           {"name":"goal","type":"uint256"},{"name":"durationDays","type":"uint256"}],
	 "outputs":[{"name":"campaign","type":"address"}]}
]`

const campaignABI = `[
	{"type":"function","name":"createMilestone","stateMutability":"nonpayable",
	 "inputs":[{"name":"title","type":"string"},{"name":"contentRef","type":"string"},{"name":"target","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable",
	 "inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"donate","stateMutability":"payable","inputs":[],"outputs":[]}
]`

// Contracts packs calldata for the campaign factory and campaign contracts
type Contracts struct {
	Factory              common.Address
	CampaignCreatedTopic common.Hash

	factory  abi.ABI
	campaign abi.ABI
}

func NewContracts(factory common.Address, campaignCreatedTopic common.Hash) (*Contracts, error) {
	factoryParsed, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	campaignParsed, err := abi.JSON(strings.NewReader(campaignABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse campaign ABI: %w", err)
	}
	return &Contracts{
		Factory:              factory,
		CampaignCreatedTopic: campaignCreatedTopic,
		factory:              factoryParsed,
		campaign:             campaignParsed,
	}, nil
}

func (c *Contracts) PackCreateCampaign(contentRef, category, title string, goalWei *big.Int, durationDays int) ([]byte, error) {
	return c.factory.Pack("createCampaign", contentRef, category, title, goalWei, big.NewInt(int64(durationDays)))
}

func (c *Contracts) PackCreateMilestone(title, contentRef string, targetWei *big.Int) ([]byte, error) {
	return c.campaign.Pack("createMilestone", title, contentRef, targetWei)
}

func (c *Contracts) PackWithdraw(amountWei *big.Int) ([]byte, error) {
	return c.campaign.Pack("withdraw", amountWei)
}

func (c *Contracts) PackDonate() ([]byte, error) {
	return c.campaign.Pack("donate")
}
