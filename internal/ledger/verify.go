package ledger

import (
	"fmt"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
)

// Verify replays an item's mutations (oldest first) and checks each entry's
// arithmetic, the continuity between entries, and that the registry quantity
// equals the final balance.
func Verify(item domain.Item, entries []domain.StockMutation) domain.LedgerCheck {
	check := domain.LedgerCheck{
		ItemID:          item.ID,
		Entries:         len(entries),
		RegistryBalance: item.Quantity,
	}

	running := 0
	for _, entry := range entries {
		if entry.BalanceBefore != running {
			return broken(check, entry, running, fmt.Sprintf(
				"balance_before %d does not continue previous balance %d", entry.BalanceBefore, running))
		}
		delta, err := SignedDelta(entry.Kind, entry.Quantity)
		if err != nil {
			return broken(check, entry, running, err.Error())
		}
		if entry.BalanceBefore+delta != entry.BalanceAfter {
			return broken(check, entry, running, fmt.Sprintf(
				"%d %+d != balance_after %d", entry.BalanceBefore, delta, entry.BalanceAfter))
		}
		running = entry.BalanceAfter
	}

	check.LedgerBalance = running
	check.Consistent = running == item.Quantity
	if !check.Consistent {
		check.Problem = fmt.Sprintf("registry quantity %d differs from ledger balance %d", item.Quantity, running)
	}
	return check
}

func broken(check domain.LedgerCheck, entry domain.StockMutation, running int, problem string) domain.LedgerCheck {
	id := entry.ID
	check.LedgerBalance = running
	check.BrokenEntryID = &id
	check.Problem = problem
	return check
}
