/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"net/http"
	"strconv"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/campaign"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/wallet"

	"github.com/gin-gonic/gin"
)

const defaultAuditPageSize = 100

func (s *Server) importWallet(c *gin.Context) {
	var req models.ImportWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	summary, err := s.cfg.Wallets.Import(c.Request.Context(), wallet.ImportParams{
		PrivateKey:      req.PrivateKey,
		ExpectedAddress: req.ExpectedAddress,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

func (s *Server) listWallets(c *gin.Context) {
	activeOnly := false
	if raw := c.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, apperr.Validation("active must be a boolean"))
			return
		}
		activeOnly = v
	}

	wallets, err := s.cfg.Wallets.List(c.Request.Context(), activeOnly)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

func (s *Server) getWallet(c *gin.Context) {
	summary, err := s.cfg.Wallets.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) setWalletActive(c *gin.Context) {
	var req models.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	summary, err := s.cfg.Wallets.SetActive(c.Request.Context(), c.Param("address"), *req.Active)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) deleteWallet(c *gin.Context) {
	if err := s.cfg.Wallets.Delete(c.Request.Context(), c.Param("address")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) walletAudit(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultAuditPageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		writeError(c, err)
		return
	}

	entries, err := s.cfg.Audit.List(c.Request.Context(), c.Param("address"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) createCampaign(c *gin.Context) {
	var req models.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	acceptance, err := s.cfg.Campaigns.CreateCampaign(c.Request.Context(), campaign.CreateCampaignParams{
		Wallet:       c.Param("address"),
		ContentRef:   req.ContentRef,
		Category:     req.Category,
		Title:        req.Title,
		Goal:         req.Goal,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, acceptance)
}

func (s *Server) createMilestone(c *gin.Context) {
	var req models.CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	acceptance, err := s.cfg.Campaigns.CreateMilestone(c.Request.Context(), campaign.CreateMilestoneParams{
		Wallet:          c.Param("address"),
		CampaignAddress: req.CampaignAddress,
		Title:           req.Title,
		ContentRef:      req.ContentRef,
		Target:          req.Target,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, acceptance)
}

func (s *Server) withdraw(c *gin.Context) {
	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	acceptance, err := s.cfg.Campaigns.Withdraw(c.Request.Context(), campaign.WithdrawParams{
		Wallet:          c.Param("address"),
		CampaignAddress: req.CampaignAddress,
		Amount:          req.Amount,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, acceptance)
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(name + " must be an integer")
	}
	return v, nil
}
