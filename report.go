package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/Alijeyrad/gotalk-coach/internal/analysis"
	"github.com/Alijeyrad/gotalk-coach/internal/pipeline"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	warning = color.New(color.FgYellow)
)

func printArtifact(w io.Writer, a pipeline.Artifact) {
	fmt.Fprintf(w, "Artifact %s: %s, %d bytes, %.1fs (%s)\n", a.ID, a.MIMEType, len(a.Bytes), a.DurationSeconds, a.Source)
	if a.Degraded {
		warning.Fprintln(w, "Capture could not be decoded; sending the raw recording instead.")
	}
	if a.DurationSeconds == 0 {
		warning.Fprintln(w, "Duration unknown; the service will use its default.")
	}
}

func printReport(w io.Writer, r *analysis.Report) {
	heading.Fprintln(w, "Transcript")
	fmt.Fprintln(w, r.RawTranscript)
	fmt.Fprintln(w)

	m := r.Metrics
	heading.Fprintln(w, "Metrics")
	fmt.Fprintf(w, "  Words per minute  %.0f\n", m.WPM)
	fmt.Fprintf(w, "  Confidence        %.0f/100\n", m.Confidence)
	fmt.Fprintf(w, "  Clarity           %.0f/100\n", m.Clarity)
	fmt.Fprintf(w, "  Total words       %d\n", m.TotalWords)
	fmt.Fprintf(w, "  Filler words      %d\n", m.FillerTotal)

	words := make([]string, 0, len(m.FillerBreakdown))
	for word, n := range m.FillerBreakdown {
		if n > 0 {
			words = append(words, word)
		}
	}
	sort.Strings(words)
	for _, word := range words {
		fmt.Fprintf(w, "    %-10s %d\n", fmt.Sprintf("%q", word), m.FillerBreakdown[word])
	}
	fmt.Fprintln(w)

	heading.Fprintln(w, "Feedback")
	fmt.Fprintln(w, strings.TrimSpace(r.AIFeedback))
}
