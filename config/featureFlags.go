package config

import (
	"os"
	"strings"
)

func envFlag(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// LenientSystemAccounts restores the legacy behaviour of silently skipping
// posting rows whose well-known account (Purchase, Sales, VAT, Rounded Off,
// Cash in Hand) does not exist for the company.
//
// Set via env:
// - LENIENT_SYSTEM_ACCOUNTS=true
func LenientSystemAccounts() bool {
	return envFlag("LENIENT_SYSTEM_ACCOUNTS")
}

// DevHeaderSession lets requests carry their tenant in X-Company-Id,
// X-Fiscal-Year-Id and X-User-Id headers instead of a session token.
// Never enable in production.
//
// Set via env:
// - DEV_HEADER_SESSION=true
func DevHeaderSession() bool {
	return envFlag("DEV_HEADER_SESSION")
}

// DefaultAutoRoundOff is used when a user has no stored round-off setting.
//
// Set via env:
// - DEFAULT_AUTO_ROUND_OFF=true
func DefaultAutoRoundOff() bool {
	return envFlag("DEFAULT_AUTO_ROUND_OFF")
}
