package campaign

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/submitter"
	"wallet-custody-go/internal/tracker"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	maxTitleLength  = 200
	minDurationDays = 1
	maxDurationDays = 365
	weiDecimals     = 18
)

type Submitter interface {
	Submit(ctx context.Context, call submitter.Call) (*submitter.Submission, error)
}

type Tracker interface {
	Track(ctx context.Context, params tracker.TrackParams) (*models.Acceptance, error)
}

// Service performs campaign actions on behalf of custodial wallets.
// Each action is validated, signed, broadcast and handed to the tracker; none waits for confirmation.
type Service struct {
	submitter Submitter
	tracker   Tracker
	contracts *chain.Contracts
}

func NewService(s Submitter, t Tracker, contracts *chain.Contracts) *Service {
	return &Service{submitter: s, tracker: t, contracts: contracts}
}

// CreateCampaignParams contains the parameters for a campaign creation. Goal is in native coin units.
type CreateCampaignParams struct {
	Wallet       string
	ContentRef   string
	Category     string
	Title        string
	Goal         decimal.Decimal
	DurationDays int
}

type CreateMilestoneParams struct {
	Wallet          string
	CampaignAddress string
	Title           string
	ContentRef      string
	Target          decimal.Decimal
}

type WithdrawParams struct {
	Wallet          string
	CampaignAddress string
	Amount          decimal.Decimal
}

func (s *Service) CreateCampaign(ctx context.Context, p CreateCampaignParams) (*models.Acceptance, error) {
	contentRef := strings.TrimSpace(p.ContentRef)
	category := strings.TrimSpace(p.Category)
	title := strings.TrimSpace(p.Title)

	if contentRef == "" {
		return nil, apperr.Validation("content reference is required")
	}
	if category == "" {
		return nil, apperr.Validation("category is required")
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if p.DurationDays < minDurationDays || p.DurationDays > maxDurationDays {
		return nil, apperr.Validation(fmt.Sprintf("duration must be between %d and %d days", minDurationDays, maxDurationDays))
	}
	goalWei, err := toWei("goal", p.Goal)
	if err != nil {
		return nil, err
	}

	data, err := s.contracts.PackCreateCampaign(contentRef, category, title, goalWei, p.DurationDays)
	if err != nil {
		return nil, apperr.Internal("failed to encode campaign creation", err)
	}

	return s.submitAndTrack(ctx, p.Wallet, s.contracts.Factory, data, models.CampaignCreation{
		ContentRef:   contentRef,
		Category:     category,
		Title:        title,
		GoalWei:      goalWei.String(),
		DurationDays: p.DurationDays,
	})
}

func (s *Service) CreateMilestone(ctx context.Context, p CreateMilestoneParams) (*models.Acceptance, error) {
	campaign, campaignLower, err := parseCampaign(p.CampaignAddress)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(p.Title)
	contentRef := strings.TrimSpace(p.ContentRef)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if contentRef == "" {
		return nil, apperr.Validation("content reference is required")
	}
	targetWei, err := toWei("target", p.Target)
	if err != nil {
		return nil, err
	}

	data, err := s.contracts.PackCreateMilestone(title, contentRef, targetWei)
	if err != nil {
		return nil, apperr.Internal("failed to encode milestone creation", err)
	}

	return s.submitAndTrack(ctx, p.Wallet, campaign, data, models.MilestoneCreation{
		CampaignAddress: campaignLower,
		Title:           title,
		ContentRef:      contentRef,
		TargetWei:       targetWei.String(),
	})
}

func (s *Service) Withdraw(ctx context.Context, p WithdrawParams) (*models.Acceptance, error) {
	campaign, campaignLower, err := parseCampaign(p.CampaignAddress)
	if err != nil {
		return nil, err
	}
	amountWei, err := toWei("amount", p.Amount)
	if err != nil {
		return nil, err
	}

	data, err := s.contracts.PackWithdraw(amountWei)
	if err != nil {
		return nil, apperr.Internal("failed to encode withdrawal", err)
	}

	return s.submitAndTrack(ctx, p.Wallet, campaign, data, models.Withdrawal{
		CampaignAddress: campaignLower,
		AmountWei:       amountWei.String(),
	})
}

func (s *Service) submitAndTrack(ctx context.Context, wallet string, to common.Address, data []byte, metadata models.TxMetadata) (*models.Acceptance, error) {
	sub, err := s.submitter.Submit(ctx, submitter.Call{Wallet: wallet, To: to, Data: data})
	if err != nil {
		return nil, err
	}
	return s.tracker.Track(ctx, tracker.TrackParams{Submission: sub, Metadata: metadata})
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n == 0 || n > maxTitleLength {
		return apperr.Validation(fmt.Sprintf("title must be between 1 and %d characters", maxTitleLength))
	}
	return nil
}

func parseCampaign(address string) (common.Address, string, error) {
	addr, lower, err := chain.ParseAddress(address)
	if err != nil {
		return common.Address{}, "", apperr.Validation(fmt.Sprintf("invalid campaign address: %v", err))
	}
	return addr, lower, nil
}

// toWei converts a positive native coin amount to wei. Sub-wei precision is rejected.
func toWei(field string, amount decimal.Decimal) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation(fmt.Sprintf("%s must be greater than zero", field))
	}
	wei := amount.Shift(weiDecimals)
	if !wei.Equal(wei.Floor()) {
		return nil, apperr.Validation(fmt.Sprintf("%s has more than %d decimal places", field, weiDecimals))
	}
	return wei.BigInt(), nil
}
