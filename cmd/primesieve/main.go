// Command primesieve counts the primes below a bound on an accelerator.
//
// It prints one line, "<primes> -> <seconds>", where seconds covers the
// device phase only.
//
// Usage:
//
//	primesieve [-n 100000] [-device gpu|host] [-kernel file] [-config file.yaml]
//	           [-factor 32] [-timeout 30s] [-map sieve.png] [-map-width 1024] [-v]
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/primesieve"
	_ "github.com/gogpu/primesieve/gpu" // register the gpu device
	"github.com/gogpu/primesieve/internal/config"
	"github.com/gogpu/primesieve/sievemap"
)

func main() {
	log.SetFlags(0)

	def := config.Default()
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		bound      = flag.Int("n", def.Bound, "count primes strictly below `N`")
		device     = flag.String("device", def.Device, "device name (gpu, host); empty selects automatically")
		kernelPath = flag.String("kernel", def.Kernel, "WGSL marking kernel `file` (default: embedded)")
		factor     = flag.Uint64("factor", uint64(def.Factor), "concurrency factor: local size = max work-group size / factor")
		timeout    = flag.Duration("timeout", def.Timeout, "device wait timeout")
		mapPath    = flag.String("map", def.Map, "write a PNG map of the sieve to `file`")
		mapWidth   = flag.Int("map-width", def.MapWidth, "PNG map width in pixels")
		verbose    = flag.Bool("v", def.Verbose, "log to stderr and print a summary")
	)
	flag.Parse()

	cfg := def
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	// Explicit flags override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.Bound = *bound
		case "device":
			cfg.Device = *device
		case "kernel":
			cfg.Kernel = *kernelPath
		case "factor":
			f, err := config.ParseFactor(*factor)
			if err != nil {
				log.Fatal(err)
			}
			cfg.Factor = f
		case "timeout":
			cfg.Timeout = *timeout
		case "map":
			cfg.Map = *mapPath
		case "map-width":
			cfg.MapWidth = *mapWidth
		case "v":
			cfg.Verbose = *verbose
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if cfg.Verbose {
		primesieve.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	res, err := primesieve.Count(cfg.Bound, cfg.Options()...)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%d -> %f\n", res.Primes, res.Elapsed.Seconds())

	if cfg.Verbose {
		printSummary(cfg, res)
	}

	if cfg.Map != "" {
		if err := sievemap.SavePNG(cfg.Map, res.Sieve, cfg.MapWidth); err != nil {
			log.Fatalf("primesieve: map: %v", err)
		}
	}
}

// printSummary reports the run on stderr with locale-grouped numbers.
func printSummary(cfg config.Config, res primesieve.Result) {
	p := message.NewPrinter(language.English)
	p.Fprintf(os.Stderr, "bound:     %d\n", cfg.Bound)
	p.Fprintf(os.Stderr, "primes:    %d\n", res.Primes)
	p.Fprintf(os.Stderr, "seeds:     %d\n", res.Seeds)
	p.Fprintf(os.Stderr, "device:    %s (%s, %s)\n", res.Device, res.Info.Name, res.Info.Backend)
	p.Fprintf(os.Stderr, "partition: %d x %d (global %d)\n",
		res.Partition.Groups(), res.Partition.Local, res.Partition.Global)
	p.Fprintf(os.Stderr, "elapsed:   %v\n", res.Elapsed.Round(time.Microsecond))
	if secs := res.Elapsed.Seconds(); secs > 0 {
		p.Fprintf(os.Stderr, "rate:      %.0f flags/s\n", float64(cfg.Bound)/secs)
	}
}
