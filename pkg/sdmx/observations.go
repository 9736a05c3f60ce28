package sdmx

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/logger"
)

// OutputStore creates the file that receives an encoded long table.
type OutputStore interface {
	Create(ctx context.Context, name string) (io.WriteCloser, error)
}

// TableEncoder serializes a table. Extension includes the leading dot.
type TableEncoder interface {
	Extension() string
	Encode(w io.Writer, t *Table) error
}

// Discarder is implemented by output writers that can drop what was
// written instead of committing it on Close.
type Discarder interface {
	Discard(cause error) error
}

// DiscardOutput releases w after a failed write. Writers that cannot discard
// are closed, which may leave a partial file behind.
func DiscardOutput(w io.WriteCloser, cause error) error {
	if d, ok := w.(Discarder); ok {
		return d.Discard(cause)
	}
	return w.Close()
}

// Observations holds the tables derived from one query result.
type Observations struct {
	queryID     string
	periodicity string
	config      QueryConfig
	hierarchies []Hierarchy
	measures    []Measure

	wide *Table
	long *Table

	logger *zap.Logger
}

// NewObservations builds the wide table, decouples it by measure and
// inserts the frequency column. Any failure aborts the query and no
// tables are returned.
func NewObservations(q *Query, cfg QueryConfig, log *zap.Logger) (*Observations, error) {
	if !cfg.UnmappedPolicy.Valid() {
		return nil, errors.New(errors.ErrorTypeConfig, "unknown unmapped policy").
			WithDetail("policy", string(cfg.UnmappedPolicy))
	}

	o := &Observations{
		queryID:     q.ID,
		periodicity: q.Periodicity,
		config:      cfg,
		hierarchies: q.Hierarchies,
		measures:    q.Measures,
		logger: logger.OrNop(log).With(
			zap.String("query_id", q.ID),
			zap.String("periodicity", q.Periodicity),
		),
	}

	o.logger.Info("processing query observations")

	o.logger.Debug("building wide table", zap.Int("raw_rows", len(q.Data)))
	wide, err := BuildWideTable(q.Data, q.Hierarchies, q.Measures, cfg, q.Periodicity)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to build wide table").
			WithDetail("query_id", q.ID)
	}
	o.wide = wide

	long, err := Decouple(wide, aliasesOf(q.Hierarchies), descriptionsOf(q.Measures), cfg.IndicatorsToDrop)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decouple measures").
			WithDetail("query_id", q.ID)
	}
	o.logger.Debug("measures decoupled", zap.Strings("indicators", indicatorsOf(long)))

	long, err = InsertFrequency(long, q.Periodicity)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to insert frequency").
			WithDetail("query_id", q.ID)
	}
	o.long = long

	o.logger.Info("query observations processed",
		zap.Int("wide_rows", wide.NumRows()),
		zap.Int("long_rows", long.NumRows()))

	return o, nil
}

// QueryID returns the identifier of the query.
func (o *Observations) QueryID() string { return o.queryID }

// Periodicity returns the periodicity label of the query.
func (o *Observations) Periodicity() string { return o.periodicity }

// Wide returns the wide table.
func (o *Observations) Wide() *Table { return o.wide }

// Long returns the decoupled, frequency-tagged table.
func (o *Observations) Long() *Table { return o.long }

// Save encodes the long table into <query id><extension> through store.
// It returns the file name.
func (o *Observations) Save(ctx context.Context, store OutputStore, enc TableEncoder) (string, error) {
	name := o.queryID + enc.Extension()

	w, err := store.Create(ctx, name)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to create output").
			WithDetail("name", name)
	}

	if err := enc.Encode(w, o.long); err != nil {
		if derr := DiscardOutput(w, err); derr != nil {
			o.logger.Warn("failed to discard partial output", zap.String("name", name), zap.Error(derr))
		}
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to encode observations").
			WithDetail("name", name)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to close output").
			WithDetail("name", name)
	}

	o.logger.Info("observations saved", zap.String("name", name), zap.Int("rows", o.long.NumRows()))
	return name, nil
}

// indicatorsOf returns the distinct INDICATOR values of long in row order.
func indicatorsOf(long *Table) []string {
	values, _ := long.Column(ColumnIndicator)
	seen := make(map[string]struct{})
	var out []string
	for _, v := range values {
		s, _ := v.(string)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// mappableColumns returns the long-table columns listed in DimensionsToMap,
// in table order.
func (o *Observations) mappableColumns() []string {
	eligible := stringSet(o.config.DimensionsToMap)
	var out []string
	for _, c := range o.long.columns {
		if _, ok := eligible[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
