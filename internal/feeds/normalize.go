package feeds

import (
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/remote"
)

// normalizeRecurring maps recurring-feed records to canonical events.
// Records without a usable date are dropped and counted.
func normalizeRecurring(recs []remote.RecurringRecord) ([]core.FinancialEvent, int) {
	out := make([]core.FinancialEvent, 0, len(recs))
	dropped := 0
	for _, rec := range recs {
		date, err := core.ParseDate(rec.Date)
		if err != nil {
			dropped++
			continue
		}
		merchant := strings.TrimSpace(rec.Merchant)
		if merchant == "" {
			merchant = strings.TrimSpace(rec.MerchantDisplay)
		}
		cadence := normalizeCadence(rec.Cadence)
		kind := core.InferKind(rec.Type, cadence)
		out = append(out, core.FinancialEvent{
			Date:      date,
			Merchant:  merchant,
			Category:  strings.TrimSpace(rec.Category),
			Type:      strings.TrimSpace(rec.Type),
			Cadence:   cadence,
			Kind:      kind,
			Amount:    core.CanonicalAmount(kind, rec.Amount.Float()),
			AccountID: rec.AccountID.ID,
			Source:    core.SourceRecurring,
		})
	}
	return out, dropped
}

// normalizePaycheck maps computed deposits to canonical events. The feed only
// emits inflows, so an empty cadence is read as paycheck.
func normalizePaycheck(recs []remote.PaycheckRecord) ([]core.FinancialEvent, int) {
	out := make([]core.FinancialEvent, 0, len(recs))
	dropped := 0
	for _, rec := range recs {
		date, err := core.ParseDate(rec.Date)
		if err != nil {
			dropped++
			continue
		}
		cadence := normalizeCadence(rec.Cadence)
		if cadence == "" {
			cadence = core.CadencePaycheck
		}
		kind := core.InferKind(rec.Type, cadence)
		ev := core.FinancialEvent{
			Date:      date,
			Merchant:  strings.TrimSpace(rec.Merchant),
			Category:  strings.TrimSpace(rec.Category),
			Type:      strings.TrimSpace(rec.Type),
			Cadence:   cadence,
			Kind:      kind,
			Amount:    core.CanonicalAmount(kind, rec.Amount.Float()),
			AccountID: rec.AccountID.ID,
			Source:    core.SourcePaycheck,
		}
		if target, err := core.ParseDate(rec.PayTarget); err == nil {
			ev.PayTarget = &target
		}
		out = append(out, ev)
	}
	return out, dropped
}

func normalizeCadence(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
