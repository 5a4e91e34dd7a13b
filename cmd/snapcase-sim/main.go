// snapcase-sim simulates the checkout service's three upstreams (order
// API, payment processor, object storage) in one process, so a local
// snapcased needs no real accounts. Point api_base_url, payment_base_url
// and storage_base_url at this process.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/snapcase/snapcase/internal/fulfillment"
	"github.com/snapcase/snapcase/internal/sim"
	"github.com/snapcase/snapcase/pkg/webkit"
)

func main() {
	var (
		port     = flag.Int("port", 8481, "HTTP listen port")
		baseURL  = flag.String("base-url", "", "External base URL (defaults to http://localhost:<port>)")
		seedFile = flag.String("seed", "", "Path to YAML pickup-location seed file")
		verbose  = flag.Bool("verbose", false, "Enable request logging")
	)
	flag.Parse()

	base := *baseURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", *port)
	}

	srv := webkit.New(webkit.Options{
		Port:    *port,
		Verbose: *verbose,
		Name:    "snapcase-sim",
	})

	handler := sim.NewHandler(base, srv.Logger)

	if *seedFile != "" {
		data, err := os.ReadFile(*seedFile)
		if err != nil {
			log.Fatalf("reading seed file: %v", err)
		}
		var locations []fulfillment.StoreLocation
		if err := yaml.Unmarshal(data, &locations); err != nil {
			log.Fatalf("parsing seed file: %v", err)
		}
		handler.SeedLocations(locations)
		srv.Logger.Info("seeded pickup catalog", "file", *seedFile, "locations", len(locations))
	}

	handler.Routes(srv.Router)

	srv.Logger.Info("snapcase-sim ready", "port", *port, "base_url", base)

	if err := srv.Serve(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
