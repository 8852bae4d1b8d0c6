package common

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"wallet-custody-go/internal/chain"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

var topicPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ContractsConfig is the integration input describing the deployed contracts
type ContractsConfig struct {
	FactoryAddress       string `yaml:"factory_address"`
	CampaignCreatedTopic string `yaml:"campaign_created_topic"`
}

func LoadContractsConfig(contractsFile string) (*ContractsConfig, error) {
	var contractsPath string
	if filepath.IsAbs(contractsFile) {
		contractsPath = contractsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		contractsPath = filepath.Join(wd, contractsFile)
	}

	data, err := os.ReadFile(contractsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", contractsFile, err)
	}

	var config ContractsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", contractsFile, err)
	}

	if config.FactoryAddress == "" {
		return nil, fmt.Errorf("%s missing factory_address", contractsFile)
	}
	if !ethcommon.IsHexAddress(config.FactoryAddress) {
		return nil, fmt.Errorf("%s has invalid factory_address %q", contractsFile, config.FactoryAddress)
	}
	// The creation event signature is never guessed
	if config.CampaignCreatedTopic == "" {
		return nil, fmt.Errorf("%s missing campaign_created_topic", contractsFile)
	}
	if !topicPattern.MatchString(config.CampaignCreatedTopic) {
		return nil, fmt.Errorf("%s has invalid campaign_created_topic %q", contractsFile, config.CampaignCreatedTopic)
	}

	return &config, nil
}

// LoadContracts reads the contracts file and prepares the calldata packers
func LoadContracts(contractsFile string) (*chain.Contracts, error) {
	config, err := LoadContractsConfig(contractsFile)
	if err != nil {
		return nil, err
	}
	return chain.NewContracts(
		ethcommon.HexToAddress(config.FactoryAddress),
		ethcommon.HexToHash(config.CampaignCreatedTopic))
}
