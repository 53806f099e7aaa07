// File: cmd/minidump_printer.go

package cmd

import (
    "fmt"
    "io"
    "strings"
    "text/tabwriter"
)

// errorHelpURL is printed after every report.
const errorHelpURL = "You can go to https://code.google.com/p/syzygy/wiki/SyzyASanBug " +
    "to get more information about how to treat this bug."

// printReport writes the report in the layout people paste into bug trackers.
// The free stack section is omitted when the error carried no free stack.
func printReport(w io.Writer, report *Report) {
    fmt.Fprintln(w, "Bad access information:")
    printLines(w, report.BadAccessInfo())

    fmt.Fprintln(w, "\nCrash stack:")
    printLines(w, report.CrashStack())

    fmt.Fprintln(w, "\nAllocation stack:")
    printLines(w, report.AllocStack())

    if report.IsUseAfterFree() {
        fmt.Fprintln(w, "\nFree stack:")
        printLines(w, report.FreeStack())
    }

    fmt.Fprintln(w)
    fmt.Fprintln(w, errorHelpURL)
}

func printLines(w io.Writer, lines []string) {
    for _, line := range lines {
        fmt.Fprintln(w, line)
    }
}

// printAnalysis prints one analysis in text mode, prefixed by the dump name
// when several dumps are reported together.
func printAnalysis(w io.Writer, analysis DumpAnalysis, withHeader bool) {
    if withHeader {
        header := fmt.Sprintf("Minidump: %s", analysis.DumpFile)
        fmt.Fprintln(w, header)
        fmt.Fprintln(w, strings.Repeat("=", len(header)))
    }
    if analysis.Report == nil {
        fmt.Fprintln(w, analysis.FrameNotFound)
        return
    }
    printReport(w, analysis.Report)
}

// printComparison prints the recurring crash patterns found by compareDumps.
func printComparison(w io.Writer, comparison DumpComparison) {
    fmt.Fprintln(w, "Minidump Comparison")
    fmt.Fprintln(w, "-------------------")
    fmt.Fprintf(w, "Dumps analyzed: %d (%d without error info frame)\n",
        comparison.TotalDumps, comparison.Unsymbolized)
    if first, ok := comparison.TimeRange["first"]; ok {
        fmt.Fprintf(w, "Time range: %s - %s\n", first, comparison.TimeRange["last"])
    }

    if len(comparison.CrashPatterns) == 0 {
        fmt.Fprintln(w, "\nNo recurring crash stacks.")
        return
    }

    fmt.Fprintln(w, "\nRecurring crash stacks:")
    tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
    for _, pattern := range comparison.CrashPatterns {
        kind := "bad access"
        if pattern.UseAfterFree {
            kind = "use after free"
        }
        fmt.Fprintf(tw, "  %d\t%s\t%s\n",
            pattern.OccurrenceCount,
            kind,
            strings.Join(pattern.StackSignature, " <- "))
    }
    tw.Flush()
}
