// Command hllgen builds an HLL from newline-delimited input, reports its
// estimated cardinality and approximate memory footprint, and optionally
// writes or unions serialized HLL files.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	hll "github.com/AdRoll/go-hll"
	"github.com/AdRoll/go-hll/internal/hllhash"
)

func main() {
	var (
		log2m     = flag.Uint("log2m", 14, "log2 of the register count")
		regwidth  = flag.Uint("regwidth", 5, "bits per register")
		expthresh = flag.Int("expthresh", hll.ExplicitThresholdAuto, "EXPLICIT promotion threshold mode (-1 auto, 0 disabled, 1-18 explicit)")
		sparse    = flag.Bool("sparse", true, "allow the SPARSE representation")
		out       = flag.String("out", "", "write the serialized HLL to this path")
		unionWith = flag.String("union", "", "union the result with a previously serialized HLL at this path before reporting")
		inputPath = flag.String("input", "", "newline-delimited input file (defaults to stdin)")
	)
	flag.Parse()

	h, err := hll.NewWithOptions(*log2m, *regwidth, *expthresh, *sparse)
	if err != nil {
		log.Fatalf("hll.NewWithOptions: %v", err)
	}

	in := os.Stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatalf("opening input: %v", err)
		}
		defer f.Close()
		in = f
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	var lines uint64
	for scanner.Scan() {
		h.AddRaw(hllhash.Sum64(scanner.Bytes()))
		lines++
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("reading input: %v", err)
	}

	if *unionWith != "" {
		data, err := os.ReadFile(*unionWith)
		if err != nil {
			log.Fatalf("reading union file: %v", err)
		}
		other, err := hll.FromBytes(data)
		if err != nil {
			log.Fatalf("decoding union file: %v", err)
		}
		if err := h.Union(other); err != nil {
			log.Fatalf("union: %v", err)
		}
	}

	log.Printf("lines=%d type=%s cardinality=%d approx_bytes=%d", lines, h.Type(), h.Cardinality(), h.ApproxMemorySize())

	if *out != "" {
		data := h.ToBytes()
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Fatalf("writing output: %v", err)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), *out)
	}
}
