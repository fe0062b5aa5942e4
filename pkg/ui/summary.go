package ui

import (
	"fmt"
	"time"

	"twmediadl/pkg/scraper"
)

// PrintSummary prints the end-of-run report, one block per category
func PrintSummary(summary scraper.Summary) {
	for _, st := range summary.Categories {
		PrintHighlight(fmt.Sprintf("\n[%s]", st.Category))

		if st.LedgerErr != nil {
			PrintError("Skipped, ledger could not be loaded", st.LedgerErr)
			continue
		}

		PrintInfo("Posts scanned", fmt.Sprintf("%d", st.Posts))
		PrintInfo("Media found", fmt.Sprintf("%d", st.Media))
		PrintInfo("Already downloaded", fmt.Sprintf("%d", st.Duplicates))
		PrintInfo("Downloaded", fmt.Sprintf("%d", st.Downloaded))
		if st.Failed > 0 {
			PrintWarning(fmt.Sprintf("%d downloads failed and will be retried next run", st.Failed))
		}
		if st.FetchErr != nil {
			PrintWarning("Listing stopped early", st.FetchErr)
		}
		if st.Interrupted {
			PrintWarning("Interrupted")
		}
		if st.PersistErr != nil {
			PrintError("Ledger could not be saved", st.PersistErr)
		} else {
			PrintInfo("Ledger", st.LedgerPath)
		}
		PrintInfo("Elapsed", st.Elapsed.Round(time.Millisecond).String())
	}

	total := fmt.Sprintf("\nDownloaded %d new files", summary.Downloaded())
	if failed := summary.Failed(); failed > 0 {
		total += fmt.Sprintf(" (%d failed)", failed)
	}
	if summary.Interrupted() {
		PrintWarning(total + ", run interrupted")
		return
	}
	PrintSuccess(total)
}
