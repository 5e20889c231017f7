package reconcile

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vendhub/vendhub_backend/models"
)

// errRunCancelled aborts a matching pass when the run was cancelled while
// processing. The worker stops without writing results.
var errRunCancelled = errors.New("run cancelled")

const maxMatchScore = 6

// matchThreshold is the minimum normalized score for a fully-found primary
// record to count as matched.
const matchThreshold = 4

// cancelPollInterval is how many primary records are processed between
// cancellation checks.
const cancelPollInterval = 100

// Match runs the single-pass greedy matcher. The first configured source is
// the primary; every primary record is scored against the not-yet-consumed
// records of each secondary source, in load order, first-found-wins on ties.
// This is intentionally greedy, not an optimal assignment: iteration order is
// part of the contract.
//
// cancelled is polled between primary-record iterations; pass nil when
// preemption is not needed.
func Match(in MatchInput, cancelled func() bool) ([]MatchResult, error) {
	if len(in.Sources) == 0 {
		return nil, errors.New("no sources configured")
	}

	primary := in.Sources[0]
	secondaries := in.Sources[1:]
	primaryRecords := in.Records[primary]

	// consumed[source][index] marks secondary records already paired.
	consumed := make(map[models.ReconciliationSource][]bool, len(secondaries))
	for _, src := range secondaries {
		consumed[src] = make([]bool, len(in.Records[src]))
	}

	results := make([]MatchResult, 0, len(primaryRecords))

	for i, rec := range primaryRecords {
		if cancelled != nil && i%cancelPollInterval == 0 && cancelled() {
			return nil, errRunCancelled
		}

		sourceData := map[models.ReconciliationSource]models.MismatchSourceData{
			primary: recordSlot(rec),
		}

		var (
			scoreSum float64
			allFound = true
			found    = []MatchRecord{rec}
		)

		for _, src := range secondaries {
			candidates := in.Records[src]
			used := consumed[src]

			bestIdx := -1
			bestScore := 0.0
			for j, cand := range candidates {
				if used[j] {
					continue
				}
				s := pairScore(rec, cand, in.TimeTolerance, in.AmountTolerance)
				if s > bestScore {
					bestScore = s
					bestIdx = j
				}
			}

			if bestIdx >= 0 {
				used[bestIdx] = true
				scoreSum += bestScore
				sourceData[src] = recordSlot(candidates[bestIdx])
				found = append(found, candidates[bestIdx])
			} else {
				allFound = false
				sourceData[src] = models.MismatchSourceData{Found: false}
			}
		}

		normalized := normalizeScore(scoreSum, len(secondaries))

		result := MatchResult{
			Record:          rec,
			AllFound:        allFound,
			RawScore:        scoreSum,
			NormalizedScore: normalized,
			SourceData:      sourceData,
		}

		switch {
		case !allFound:
			result.MismatchType = models.MismatchTypeOrderNotFound
		case normalized >= matchThreshold:
			result.Matched = true
		default:
			discrepancy := amountSpread(found)
			result.Discrepancy = &discrepancy
			if discrepancy.Cmp(in.AmountTolerance) > 0 {
				result.MismatchType = models.MismatchTypeAmountMismatch
			} else {
				result.MismatchType = models.MismatchTypeTimeMismatch
			}
		}
		results = append(results, result)
	}

	// Leftover secondary records were paid somewhere but never ordered:
	// each one becomes a PAYMENT_NOT_FOUND result carrying its own amount
	// as the discrepancy.
	for _, src := range secondaries {
		used := consumed[src]
		for j, cand := range in.Records[src] {
			if used[j] {
				continue
			}
			sourceData := make(map[models.ReconciliationSource]models.MismatchSourceData, len(in.Sources))
			for _, s := range in.Sources {
				sourceData[s] = models.MismatchSourceData{Found: false}
			}
			sourceData[src] = recordSlot(cand)

			orphanAmount := cand.Amount
			results = append(results, MatchResult{
				Record:          cand,
				Matched:         false,
				AllFound:        false,
				NormalizedScore: 0,
				MismatchType:    models.MismatchTypePaymentNotFound,
				Discrepancy:     &orphanAmount,
				SourceData:      sourceData,
			})
		}
	}

	return results, nil
}

// pairScore rates one primary/secondary pair on a 0..3 scale in half-point
// steps. Time or amount outside tolerance disqualifies the pair outright.
func pairScore(a, b MatchRecord, timeTol time.Duration, amountTol decimal.Decimal) float64 {
	score := 0.0

	dt := a.Time.Sub(b.Time)
	if dt < 0 {
		dt = -dt
	}
	switch {
	case dt <= timeTol:
		score += 1
	case dt <= 2*timeTol:
		score += 0.5
	default:
		return 0
	}

	da := a.Amount.Sub(b.Amount).Abs()
	switch {
	case da.IsZero():
		score += 1
	case da.Cmp(amountTol) <= 0:
		score += 0.5
	default:
		return 0
	}

	if a.MachineCode != "" && b.MachineCode != "" && a.MachineCode == b.MachineCode {
		score += 1
	}

	return score
}

// normalizeScore maps the accumulated pair scores onto the 0..6 confidence
// scale: round((sum / secondaryCount) * 6 / 3), capped at 6.
func normalizeScore(scoreSum float64, secondaryCount int) int {
	if secondaryCount == 0 {
		return 0
	}
	n := int(math.Round(scoreSum / float64(secondaryCount) * 2))
	if n > maxMatchScore {
		n = maxMatchScore
	}
	if n < 0 {
		n = 0
	}
	return n
}

// amountSpread is max(amount) - min(amount) across all records of one match
// group.
func amountSpread(records []MatchRecord) decimal.Decimal {
	if len(records) == 0 {
		return decimal.Zero
	}
	minAmount := records[0].Amount
	maxAmount := records[0].Amount
	for _, r := range records[1:] {
		if r.Amount.Cmp(minAmount) < 0 {
			minAmount = r.Amount
		}
		if r.Amount.Cmp(maxAmount) > 0 {
			maxAmount = r.Amount
		}
	}
	return maxAmount.Sub(minAmount)
}

func recordSlot(rec MatchRecord) models.MismatchSourceData {
	amount := rec.Amount
	t := rec.Time
	return models.MismatchSourceData{
		Found:          true,
		Amount:         &amount,
		Time:           &t,
		TransactionId:  rec.TransactionId,
		AdditionalData: rec.Extra,
	}
}
