// Command x86disasm walks a flat binary image as a sequence of 16-bit
// real-mode x86 instructions and lists them one per line, in the style
// of the teacher's ie32to64 converter: flag-parsed CLI, a single
// positional input path, -o for an output file instead of stdout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"

	wg86 "github.com/retroboards/wg86"
)

func main() {
	outFile := flag.String("o", "", "write listing to this file instead of stdout")
	baseOffset := flag.String("offset", "0", "starting offset (hex, no 0x prefix) within the segment")
	segment := flag.String("segment", "0", "segment value (hex, no 0x prefix) reported in the listing")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: x86disasm [flags] <input.bin>\n\n")
		fmt.Fprintf(os.Stderr, "Disassembles a flat binary image as 16-bit real-mode x86 code.\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nexamples:\n")
		fmt.Fprintf(os.Stderr, "  x86disasm module.bin\n")
		fmt.Fprintf(os.Stderr, "  x86disasm -o module.lst -segment 1000 module.bin\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	segVal, err := strconv.ParseUint(*segment, 16, 16)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: -segment: %v\n", err)
		os.Exit(1)
	}
	baseVal, err := strconv.ParseUint(*baseOffset, 16, 16)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: -offset: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	defer w.Flush()

	seg := uint16(segVal)
	base := uint16(baseVal)
	errCount := 0
	for i := 0; i < len(data); {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		chunk := data[i:end]
		off := base + uint16(i)

		in, err := wg86.Disassemble(chunk, seg, off)
		if err != nil {
			fmt.Fprintf(w, "%04X:%04X  %-24x ; decode error: %v\n", seg, off, chunk[:min(len(chunk), 8)], err)
			errCount++
			i++
			continue
		}
		fmt.Fprintf(w, "%04X:%04X  %-24x %s\n", seg, off, chunk[:in.Len], in)
		i += in.Len
	}

	w.Flush()
	if errCount > 0 {
		fmt.Fprintf(os.Stderr, "%d decode error(s)\n", errCount)
		os.Exit(1)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
