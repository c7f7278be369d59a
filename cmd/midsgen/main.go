package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

func main() {
	outFile := flag.String("o", "", "Output file (default: input with .mids extension)")
	pattern := flag.String("pattern", "", "Generate a built-in pattern instead of converting (scale, chords)")
	division := flag.Int("division", 96, "Ticks per quarter note for generated patterns")
	tempo := flag.Int("tempo", 500000, "Initial tempo in microseconds per quarter note")
	compact := flag.Bool("compact", false, "Write the compact form without per-event stream IDs")
	blockEvents := flag.Int("block-events", 64, "Events per data block")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: midsgen [options] input.mid\n       midsgen [options] -pattern name -o out.mids\n\nConverts a standard MIDI file to a RIFF MIDS container, or generates\na test pattern. Tempo changes and channel messages survive conversion;\nend-of-track markers become NOPs and everything else is dropped.\n\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  midsgen doom.mid\n")
		fmt.Fprintf(os.Stderr, "  midsgen -compact -o doom.mids doom.mid\n")
		fmt.Fprintf(os.Stderr, "  midsgen -pattern scale -division 120 -o scale.mids\n")
	}
	flag.Parse()

	gen := NewGenerator()
	gen.compact = *compact
	gen.blockEvents = *blockEvents

	var (
		out []byte
		err error
	)
	outputPath := *outFile

	switch {
	case *pattern != "":
		if flag.NArg() != 0 {
			flag.Usage()
			os.Exit(1)
		}
		if outputPath == "" {
			outputPath = *pattern + ".mids"
		}
		out, err = gen.GeneratePattern(*pattern, *division, *tempo)
	case flag.NArg() == 1:
		inputPath := flag.Arg(0)
		if outputPath == "" {
			outputPath = strings.TrimSuffix(inputPath, ".mid") + ".mids"
		}
		var data []byte
		data, err = os.ReadFile(inputPath)
		if err == nil {
			out, err = gen.ConvertSMF(data)
		}
	default:
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", outputPath, err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d events in %d blocks\n", outputPath, gen.eventCount, gen.blockCount)
}
