package tour

import (
	"github.com/google/uuid"
	"github.com/mastercactapus/cncdrill/coord"
	"github.com/mastercactapus/cncdrill/job"
)

// Result holds every candidate tour and the one that should be used.
type Result struct {
	Original   Tour   `json:"original"`
	Candidates []Tour `json:"candidates"`
	Best       Tour   `json:"best"`

	// Improved is false when no candidate was strictly shorter than the original order.
	Improved bool `json:"improved"`
}

// Options configure Optimize.
type Options struct {
	// Band is the scan-line grouping tolerance in inches, DefaultBand if zero.
	Band float64
}

// Optimize computes the candidate tours from start and picks the shortest.
//
// The best of the two scan-line tours competes with nearest-neighbor; the
// winner is only used if it is strictly shorter than the original order.
func Optimize(start coord.Point, targets []job.Target, opt Options) Result {
	band := opt.Band
	if band <= 0 {
		band = DefaultBand
	}

	orig := Original(start, targets)
	nn := NearestNeighbor(start, targets)

	// scan lines are laid out from the table origin; only their length depends on start
	hsl := HorizontalScan(start, targets, band)
	vsl := VerticalScan(start, targets, band)

	bestSL := hsl
	if vsl.Length < hsl.Length {
		bestSL = vsl
	}
	best := bestSL
	if nn.Length < bestSL.Length {
		best = nn
	}

	res := Result{
		Original:   orig,
		Candidates: []Tour{orig, nn, hsl, vsl},
		Best:       orig,
	}
	if best.Length < orig.Length {
		res.Best = best
		res.Improved = true
	}
	return res
}

// IDs returns the target ids of t in tour order.
func (t Tour) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(t.Order))
	for i, tg := range t.Order {
		ids[i] = tg.ID
	}
	return ids
}
