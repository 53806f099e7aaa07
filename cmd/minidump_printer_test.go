// File: cmd/minidump_printer_test.go
package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintReport(t *testing.T) {
	tests := []struct {
		name   string
		report *Report
		wants  []string // Strings that should appear in output
		nots   []string // Strings that should not appear in output
	}{
		{
			name: "bad access without free stack",
			report: NewReport(
				[]string{"Type agent::asan::AsanErrorInfo", "   +0x000 location : 0x0a2b0010"},
				[]string{"asan_rtl!agent::asan::AsanRuntime::OnError", "chrome_dll!Foo"},
				[]string{"chrome_dll!operator new+0x8"},
				nil,
			),
			wants: []string{
				"Bad access information:\n   +0x000 location : 0x0a2b0010\n",
				"\nCrash stack:\nasan_rtl!agent::asan::AsanRuntime::OnError\nchrome_dll!Foo\n",
				"\nAllocation stack:\nchrome_dll!operator new+0x8\n",
				"\n\n" + errorHelpURL + "\n",
			},
			nots: []string{
				"Free stack:",
				"Type agent::asan::AsanErrorInfo",
			},
		},
		{
			name: "use after free",
			report: NewReport(
				[]string{"header", "access"},
				[]string{"chrome_dll!Foo"},
				[]string{"chrome_dll!Alloc"},
				[]string{"chrome_dll!Free"},
			),
			wants: []string{
				"\nFree stack:\nchrome_dll!Free\n",
				errorHelpURL,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printReport(&buf, tt.report)
			output := buf.String()

			if !strings.HasPrefix(output, "Bad access information:\n") {
				t.Errorf("output does not start with the bad access section:\n%s", output)
			}
			for _, want := range tt.wants {
				if !strings.Contains(output, want) {
					t.Errorf("output missing expected string %q\n%s", want, output)
				}
			}
			for _, not := range tt.nots {
				if strings.Contains(output, not) {
					t.Errorf("output contains unexpected string %q", not)
				}
			}
		})
	}
}

func TestPrintAnalysis(t *testing.T) {
	var buf bytes.Buffer
	printAnalysis(&buf, DumpAnalysis{
		DumpFile:      "/tmp/crash.dmp",
		FrameNotFound: "Unable to find the asan_rtl!agent::asan::AsanRuntime::OnError frame for /tmp/crash.dmp.",
	}, true)

	output := buf.String()
	if !strings.HasPrefix(output, "Minidump: /tmp/crash.dmp\n=") {
		t.Errorf("missing dump header:\n%s", output)
	}
	if !strings.HasSuffix(output, "frame for /tmp/crash.dmp.\n") {
		t.Errorf("missing frame not found diagnostic:\n%s", output)
	}
	if strings.Contains(output, "Crash stack:") {
		t.Errorf("unexpected report sections:\n%s", output)
	}
}
