package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pricewatch/crawler/internal/domain"
	"github.com/pricewatch/crawler/internal/usecase"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeResultLine prints one merged result as it arrives
func writeResultLine(w io.Writer, r domain.StoreResult) {
	tag := ""
	if r.Override {
		tag = " (override)"
	}
	switch r.Status() {
	case domain.ResultFailed:
		fmt.Fprintf(w, "✗ %s%s: %s\n", r.StoreName, tag, *r.Error)
	case domain.ResultResolved:
		if r.URL == nil {
			fmt.Fprintf(w, "- %s%s: not found\n", r.StoreName, tag)
			return
		}
		fmt.Fprintf(w, "✓ %s%s: %d offers %s\n", r.StoreName, tag, len(r.Offers), *r.URL)
	}
}

// writeSnapshot prints the final table of a session
func writeSnapshot(w io.Writer, snap usecase.Snapshot) error {
	fmt.Fprintf(w, "%s [%s]\n", snap.ProductName, snap.State)
	if snap.StreamError != "" {
		fmt.Fprintf(w, "stream error: %s\n", snap.StreamError)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STORE\tSTATUS\tVARIANT\tNOTE\tPRICE\tURL")
	for _, r := range snap.Results {
		status := string(r.Status())
		if r.Error != nil {
			status = "failed: " + *r.Error
		}
		if len(r.Offers) == 0 {
			fmt.Fprintf(tw, "%s\t%s\t\t\t\t%s\n", r.StoreName, status, r.ResolvedURL())
			continue
		}
		for i, o := range r.Offers {
			name, url := r.StoreName, r.ResolvedURL()
			if i > 0 {
				name, status, url = "", "", ""
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", name, status, o.Variant, o.Note, o.Price, url)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(snap.Links) > 0 {
		links := make([]string, 0, len(snap.Links))
		for _, l := range snap.Links {
			links = append(links, l.Store)
		}
		fmt.Fprintf(w, "ready to submit: %v (%s)\n", snap.ReadyToSubmit, strings.Join(links, ", "))
	}
	return nil
}

func writeOffers(w io.Writer, offers []domain.PriceOffer) error {
	if len(offers) == 0 {
		fmt.Fprintln(w, "no offers")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tNOTE\tPRICE")
	for _, o := range offers {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", o.Variant, o.Note, o.Price)
	}
	return tw.Flush()
}
