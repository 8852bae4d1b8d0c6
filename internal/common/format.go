package common

import (
	"fmt"
	"strings"

	"wallet-custody-go/internal/models"
)

const (
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// PrintWallets renders wallet summaries as a tree, one wallet per branch
func PrintWallets(wallets []models.WalletSummary) {
	fmt.Println("├" + strings.Repeat("─", DefaultWidth-1))
	for i, w := range wallets {
		isLast := i == len(wallets)-1
		fmt.Printf("%s%s\n", BoxPrefix(isLast), w.Address)
		fmt.Printf("%s  active: %-5t  campaigns: %d  created: %s\n",
			BoxDetailPrefix(isLast), w.Active, w.CampaignCount, w.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

// PrintAuditEntries renders audit entries newest first
func PrintAuditEntries(entries []models.AuditLogEntry) {
	for i, e := range entries {
		isLast := i == len(entries)-1
		fmt.Printf("%s%s  %-22s by %s\n", BoxPrefix(isLast), e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.PerformedBy)
		if e.TxHash != nil {
			fmt.Printf("%s  tx: %s\n", BoxDetailPrefix(isLast), *e.TxHash)
		}
	}
}
