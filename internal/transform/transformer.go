// Package transform converts coordinate tuples between coordinate
// reference systems.
//
// A Transformer is bound to one target CRS. For every source CRS it sees it
// builds a chain once: axis normalization, inverse projection, datum shift
// through geocentric coordinates, forward projection and axis
// denormalization. Chains are immutable and shared by concurrent callers.
package transform

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pspoerri/crstransform/internal/crs"
)

// Defaults for Options.
const (
	DefaultParallelThreshold = 4096

	// cancelCheckInterval is how many tuples run between context checks.
	cancelCheckInterval = 1024
)

// Options configures a Transformer.
type Options struct {
	// Workers bounds the goroutines used for one batch. Zero means
	// GOMAXPROCS.
	Workers int

	// ParallelThreshold is the batch size from which work is split across
	// workers. Zero means DefaultParallelThreshold.
	ParallelThreshold int

	Log logrus.FieldLogger
}

// Transformer converts coordinates from any source CRS into its target.
// It is safe for concurrent use.
type Transformer struct {
	target *crs.CRS
	opts   Options
	log    logrus.FieldLogger
	chains cmap.ConcurrentMap[*crs.CRS, *chain]
}

func shardCRS(c *crs.CRS) uint32 {
	h := fnv.New32a()
	h.Write([]byte(c.Identifier()))
	return h.Sum32()
}

// New returns a transformer into target.
func New(target *crs.CRS, opts Options) *Transformer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultParallelThreshold
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Transformer{
		target: target,
		opts:   opts,
		log:    opts.Log,
		chains: cmap.NewWithCustomShardingFunction[*crs.CRS, *chain](shardCRS),
	}
}

// Target is the CRS this transformer produces coordinates in.
func (t *Transformer) Target() *crs.CRS { return t.target }

func (t *Transformer) fail(source *crs.CRS, reason string, err error) error {
	e := &crs.TransformationError{Reason: reason, Err: err}
	if source != nil {
		e.Source = source.Identifier()
	}
	if t.target != nil {
		e.Target = t.target.Identifier()
	}
	errorsMetric.Inc()
	return e
}

// chain returns the cached chain for source, building it on first use.
func (t *Transformer) chain(source *crs.CRS) (*chain, error) {
	if source == nil || t.target == nil {
		return nil, t.fail(source, "source and target CRS are required", nil)
	}
	if c, ok := t.chains.Get(source); ok {
		return c, nil
	}
	c, err := buildChain(source, t.target)
	if err != nil {
		return nil, t.fail(source, "building chain", err)
	}
	if !t.chains.SetIfAbsent(source, c) {
		c, _ = t.chains.Get(source)
	}
	t.log.WithFields(logrus.Fields{
		"source": source.Identifier(),
		"target": t.target.Identifier(),
		"path":   c.path.String(),
		"steps":  len(c.steps),
	}).Debug("transformation chain built")
	return c, nil
}

// Transform converts every tuple in points from source into the target
// CRS. The result has the same length and order as points; each output
// tuple is newly allocated. Any failure aborts the whole batch.
func (t *Transformer) Transform(source *crs.CRS, points [][]float64) ([][]float64, error) {
	return t.TransformContext(context.Background(), source, points)
}

// TransformContext is Transform with cancellation for large batches.
func (t *Transformer) TransformContext(ctx context.Context, source *crs.CRS, points [][]float64) ([][]float64, error) {
	c, err := t.chain(source)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(points))

	workers := t.opts.Workers
	if len(points) < t.opts.ParallelThreshold || workers < 2 {
		if err := t.run(ctx, c, points, out, 0); err != nil {
			return nil, err
		}
		pointsMetric.WithLabelValues(c.path.String()).Add(float64(len(points)))
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(points) + workers - 1) / workers
	for lo := 0; lo < len(points); lo += chunk {
		hi := min(lo+chunk, len(points))
		g.Go(func() error {
			return t.run(gctx, c, points[lo:hi], out[lo:hi], lo)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	pointsMetric.WithLabelValues(c.path.String()).Add(float64(len(points)))
	return out, nil
}

// run transforms one contiguous slice of a batch. offset is the index of
// points[0] within the batch, used in error messages.
func (t *Transformer) run(ctx context.Context, c *chain, points, out [][]float64, offset int) error {
	for i, p := range points {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return t.fail(c.source, "batch cancelled", err)
			}
		}
		q := make([]float64, c.outLen(len(p)))
		if err := c.apply(p, q); err != nil {
			return t.fail(c.source, fmt.Sprintf("point %d", offset+i), err)
		}
		out[i] = q
	}
	return nil
}

// TransformPoint converts a single tuple.
func (t *Transformer) TransformPoint(source *crs.CRS, p []float64) ([]float64, error) {
	c, err := t.chain(source)
	if err != nil {
		return nil, err
	}
	q := make([]float64, c.outLen(len(p)))
	if err := c.apply(p, q); err != nil {
		return nil, t.fail(source, "point 0", err)
	}
	pointsMetric.WithLabelValues(c.path.String()).Inc()
	return q, nil
}

// Path reports which strategy converts coordinates from source.
func (t *Transformer) Path(source *crs.CRS) (Path, error) {
	c, err := t.chain(source)
	if err != nil {
		return 0, err
	}
	return c.path, nil
}

// Describe lists the steps that convert coordinates from source, one per
// line.
func (t *Transformer) Describe(source *crs.CRS) (string, error) {
	c, err := t.chain(source)
	if err != nil {
		return "", err
	}
	return c.describe(), nil
}

