package common

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validTopic = "0x1111111111111111111111111111111111111111111111111111111111111111"

func writeContracts(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contracts.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write contracts file: %v", err)
	}
	return path
}

func TestLoadContracts(t *testing.T) {
	path := writeContracts(t, "factory_address: \"0x5FbDB2315678afecb367f032d93F642f64180aa3\"\n"+
		"campaign_created_topic: \""+validTopic+"\"\n")

	contracts, err := LoadContracts(path)
	if err != nil {
		t.Fatalf("LoadContracts failed: %v", err)
	}
	if got := strings.ToLower(contracts.Factory.Hex()); got != "0x5fbdb2315678afecb367f032d93f642f64180aa3" {
		t.Errorf("unexpected factory %s", got)
	}
	if contracts.CampaignCreatedTopic.Hex() != validTopic {
		t.Errorf("unexpected topic %s", contracts.CampaignCreatedTopic.Hex())
	}
}

func TestLoadContractsRejectsIncompleteFiles(t *testing.T) {
	cases := map[string]string{
		"missing topic":   "factory_address: \"0x5FbDB2315678afecb367f032d93F642f64180aa3\"\n",
		"short topic":     "factory_address: \"0x5FbDB2315678afecb367f032d93F642f64180aa3\"\ncampaign_created_topic: \"0x1234\"\n",
		"missing factory": "campaign_created_topic: \"" + validTopic + "\"\n",
		"bad factory":     "factory_address: \"factory\"\ncampaign_created_topic: \"" + validTopic + "\"\n",
		"not yaml":        "factory_address: [\n",
	}
	for name, body := range cases {
		if _, err := LoadContracts(writeContracts(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	if _, err := LoadContracts(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}
