package usecase

import (
	"net/mail"
	"strings"

	"github.com/samber/lo"

	"laundry-billing/internal/domain/model"
)

// ResolveRecipients picks who receives billing mail for a branch.
// An override wins outright; otherwise the laundry's billing contact is used,
// falling back to the branch's active staff profiles.
func ResolveRecipients(contact *model.BranchContact, override string) []string {
	if addr, ok := normalizeEmail(override); ok {
		return []string{addr}
	}
	if contact == nil {
		return nil
	}
	if addr, ok := normalizeEmail(contact.Laundry.ContactEmail); ok {
		return []string{addr}
	}
	active := lo.Filter(contact.Profiles, func(p model.Profile, _ int) bool { return p.Active })
	addrs := lo.FilterMap(active, func(p model.Profile, _ int) (string, bool) { return normalizeEmail(p.Email) })
	return lo.Uniq(addrs)
}

func normalizeEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}
