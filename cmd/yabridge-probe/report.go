// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
)

// writeReport prints report as text or indented JSON.
func writeReport(w io.Writer, report *Report, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "vendor: %s\n", report.Vendor)
	if report.URL != "" {
		fmt.Fprintf(&b, "url:    %s\n", report.URL)
	}
	if report.HostVersion != "" {
		fmt.Fprintf(&b, "host:   yabridge-host %s\n", report.HostVersion)
	}
	for _, class := range report.Classes {
		fmt.Fprintf(&b, "\n%s (%s)\n  cid: %s\n", class.Name, class.Category, class.CID)
		if class.SubCategories != "" {
			fmt.Fprintf(&b, "  sub-categories: %s\n", class.SubCategories)
		}
		if class.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", class.Error)
		}
		writeBuses(&b, class.Buses)
		writeParameters(&b, class.Parameters)
		if class.StateBytes > 0 {
			fmt.Fprintf(&b, "  state: %d bytes\n", class.StateBytes)
		}
		if processing := class.Processing; processing != nil {
			fmt.Fprintf(&b, "  processing: %d blocks of %d samples, latency %d, tail %d\n",
				processing.Blocks, processing.BlockSize, processing.LatencySamples, processing.TailSamples)
			fmt.Fprintf(&b, "    input peak:  %s\n", decibels(processing.InputPeak))
			for channel, level := range processing.OutputPeaks {
				fmt.Fprintf(&b, "    output %d peak: %s\n", channel, decibels(level))
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeBuses(b *strings.Builder, buses []BusReport) {
	if len(buses) == 0 {
		return
	}
	b.WriteString("  buses:\n")
	table := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
	for _, bus := range buses {
		fmt.Fprintf(table, "    %s\t%s\t%d ch\n", bus.Direction, bus.Name, bus.Channels)
	}
	table.Flush()
}

func writeParameters(b *strings.Builder, parameters []ParameterReport) {
	if len(parameters) == 0 {
		return
	}
	b.WriteString("  parameters:\n")
	table := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "    ID\tTITLE\tVALUE\tDEFAULT")
	for _, parameter := range parameters {
		fmt.Fprintf(table, "    %d\t%s\t%s\t%.3f\n", parameter.ID, parameter.Title, parameter.Value, parameter.Default)
	}
	table.Flush()
}

// decibels formats a linear peak level as dBFS.
func decibels(level float64) string {
	if level <= 0 {
		return "-inf dBFS"
	}
	return fmt.Sprintf("%.1f dBFS", 20*math.Log10(level))
}
