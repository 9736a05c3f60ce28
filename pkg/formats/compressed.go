package formats

import (
	"io"

	"github.com/frapercan/IECA2SDMX/pkg/compression"
	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
)

// Compressed compresses the whole output of another encoder.
type Compressed struct {
	Encoder   sdmx.TableEncoder
	Algorithm compression.Algorithm
	Level     compression.Level
}

// Extension implements sdmx.TableEncoder.
func (c *Compressed) Extension() string {
	return c.Encoder.Extension() + c.Algorithm.Extension()
}

// Encode implements sdmx.TableEncoder.
func (c *Compressed) Encode(w io.Writer, t *sdmx.Table) error {
	cw, err := compression.NewWriter(w, c.Algorithm, c.Level)
	if err != nil {
		return err
	}
	if err := c.Encoder.Encode(cw, t); err != nil {
		_ = cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush compressed output").
			WithDetail("algorithm", string(c.Algorithm))
	}
	return nil
}
