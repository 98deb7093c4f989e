package lnvps

import (
	"sort"
	"strings"
)

// SelectMethods filters the advertised rails down to those the account can use.
// The wallet-push rail is suppressed when the account has no wallet connection
// string. Order is preserved. A nil account is treated as having no connection.
func SelectMethods(methods []PaymentMethod, account *AccountDetail) []PaymentMethod {
	out := make([]PaymentMethod, 0, len(methods))
	for _, m := range methods {
		if strings.EqualFold(m.Name, MethodNWC) && !account.HasWalletConnection() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// FindMethod returns the rail named name, or false if it is not advertised.
func FindMethod(methods []PaymentMethod, name string) (PaymentMethod, bool) {
	for _, m := range methods {
		if m.Name == name {
			return m, true
		}
	}
	return PaymentMethod{}, false
}

// PreferredMethod picks a rail for an automatic checkout.
// Candidates are ranked by:
// 1. Support for the requested currency (when currency is non-empty)
// 2. Position in preference (names not listed rank last)
// 3. Order advertised by the backend (for ties)
//
// It returns false when methods is empty.
func PreferredMethod(methods []PaymentMethod, currency string, preference ...string) (PaymentMethod, bool) {
	if len(methods) == 0 {
		return PaymentMethod{}, false
	}

	type candidate struct {
		method   PaymentMethod
		currency int
		rank     int
		index    int
	}

	rankOf := func(name string) int {
		for i, p := range preference {
			if strings.EqualFold(p, name) {
				return i
			}
		}
		return len(preference)
	}

	candidates := make([]candidate, 0, len(methods))
	for i, m := range methods {
		c := candidate{method: m, rank: rankOf(m.Name), index: i}
		if currency != "" && !m.SupportsCurrency(currency) {
			c.currency = 1
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].currency != candidates[j].currency {
			return candidates[i].currency < candidates[j].currency
		}
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		return candidates[i].index < candidates[j].index
	})

	return candidates[0].method, true
}
