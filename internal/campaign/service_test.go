package campaign

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/chain/chaintest"
	"wallet-custody-go/internal/database"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/submitter"
	"wallet-custody-go/internal/testutil"
	"wallet-custody-go/internal/tracker"
	"wallet-custody-go/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var factory = common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")

const campaignAddr = "0xe7f1725e7734ce288f8367e1bb143e90bb3f0512"

type fixture struct {
	db        *database.Service
	backend   *chaintest.Backend
	registry  *wallet.Registry
	contracts *chain.Contracts
	svc       *Service
}

func newFixture(t *testing.T, fund bool) *fixture {
	testutil.QuietLogger(t)
	ctx := context.Background()
	db := testutil.NewStore(t)
	registry := wallet.NewRegistry(db, testutil.NewVault(t))
	_, err := registry.Import(ctx, wallet.ImportParams{PrivateKey: testutil.KeyA})
	require.NoError(t, err)

	backend := chaintest.NewBackend()
	if fund {
		backend.SetBalance(common.HexToAddress(testutil.AddressA), big.NewInt(1e18))
	}
	sub, err := submitter.New(ctx, backend, registry, db, 0)
	require.NoError(t, err)

	contracts, err := chain.NewContracts(factory, common.HexToHash("0x01"))
	require.NoError(t, err)
	tr := tracker.New(tracker.Config{Store: db, Backend: backend, Contracts: contracts})
	t.Cleanup(tr.Stop)

	return &fixture{db: db, backend: backend, registry: registry, contracts: contracts, svc: NewService(sub, tr, contracts)}
}

func validCampaign() CreateCampaignParams {
	return CreateCampaignParams{
		Wallet:       testutil.AddressA,
		ContentRef:   "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		Category:     "education",
		Title:        "School roof",
		Goal:         decimal.RequireFromString("1.5"),
		DurationDays: 30,
	}
}

func TestCreateCampaign(t *testing.T) {
	f := newFixture(t, true)

	acc, err := f.svc.CreateCampaign(models.WithPrincipal(context.Background(), "op"), validCampaign())
	require.NoError(t, err)

	sent := f.backend.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, factory, *sent[0].To())

	want, err := f.contracts.PackCreateCampaign(validCampaign().ContentRef, "education", "School roof", big.NewInt(15e17), 30)
	require.NoError(t, err)
	require.Equal(t, want, sent[0].Data())

	pending, err := f.db.GetPending(context.Background(), acc.TxHash)
	require.NoError(t, err)
	require.Equal(t, acc.PendingId, pending.Id)
	m := pending.Metadata.(models.CampaignCreation)
	require.Equal(t, "1500000000000000000", m.GoalWei)
	require.Nil(t, m.CampaignAddress)
}

func TestCreateCampaign_Validation(t *testing.T) {
	f := newFixture(t, true)

	cases := map[string]func(p *CreateCampaignParams){
		"empty content ref": func(p *CreateCampaignParams) { p.ContentRef = " " },
		"empty category":    func(p *CreateCampaignParams) { p.Category = "" },
		"empty title":       func(p *CreateCampaignParams) { p.Title = "" },
		"long title":        func(p *CreateCampaignParams) { p.Title = strings.Repeat("a", 201) },
		"zero duration":     func(p *CreateCampaignParams) { p.DurationDays = 0 },
		"long duration":     func(p *CreateCampaignParams) { p.DurationDays = 366 },
		"zero goal":         func(p *CreateCampaignParams) { p.Goal = decimal.Zero },
		"sub-wei goal":      func(p *CreateCampaignParams) { p.Goal = decimal.New(1, -19) },
		"bad wallet":        func(p *CreateCampaignParams) { p.Wallet = "wallet" },
	}
	for name, mutate := range cases {
		p := validCampaign()
		mutate(&p)
		_, err := f.svc.CreateCampaign(context.Background(), p)
		require.True(t, apperr.Is(err, apperr.KindValidation), "%s: %v", name, err)
	}

	p := validCampaign()
	p.Title = strings.Repeat("é", 200)
	_, err := f.svc.CreateCampaign(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, f.backend.Sent(), 1)
}

func TestCreateCampaign_InactiveWallet(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.registry.SetActive(context.Background(), testutil.AddressA, false)
	require.NoError(t, err)

	_, err = f.svc.CreateCampaign(context.Background(), validCampaign())
	require.True(t, apperr.Is(err, apperr.KindValidation))
	require.Empty(t, f.backend.Sent())
}

func TestCreateCampaign_InsufficientFunds(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.CreateCampaign(context.Background(), validCampaign())
	require.True(t, apperr.Is(err, apperr.KindInsufficientFunds))

	pending, err := f.db.ListPendingByStatus(context.Background(), models.TxPending, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestCreateMilestoneAndWithdraw(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	acc, err := f.svc.CreateMilestone(ctx, CreateMilestoneParams{
		Wallet:          testutil.AddressA,
		CampaignAddress: strings.ToUpper(campaignAddr[2:]),
		Title:           "Phase 1",
		ContentRef:      "bafy-phase-1",
		Target:          decimal.RequireFromString("0.25"),
	})
	require.NoError(t, err)
	pending, err := f.db.GetPending(ctx, acc.TxHash)
	require.NoError(t, err)
	milestone := pending.Metadata.(models.MilestoneCreation)
	require.Equal(t, campaignAddr, milestone.CampaignAddress)
	require.Equal(t, "250000000000000000", milestone.TargetWei)

	acc, err = f.svc.Withdraw(ctx, WithdrawParams{
		Wallet:          testutil.AddressA,
		CampaignAddress: campaignAddr,
		Amount:          decimal.RequireFromString("0.1"),
	})
	require.NoError(t, err)
	pending, err = f.db.GetPending(ctx, acc.TxHash)
	require.NoError(t, err)
	require.Equal(t, models.KindWithdrawal, pending.Kind)

	sent := f.backend.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, common.HexToAddress(campaignAddr), *sent[1].To())
	require.Equal(t, uint64(1), sent[1].Nonce())

	_, err = f.svc.Withdraw(ctx, WithdrawParams{Wallet: testutil.AddressA, CampaignAddress: "0x12", Amount: decimal.NewFromInt(1)})
	require.True(t, apperr.Is(err, apperr.KindValidation))
}
