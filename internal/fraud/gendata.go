package fraud

import (
	"bufio"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
	"github.com/FlavioCFOliveira/fraudrnn/internal/data"
)

// GenerateData writes synthetic train and test files into cfg.DataDir.
// The test file uses testCards cards and a different seed.
func GenerateData(cfg *config.Config, o data.SynthOptions, testCards int) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return errors.Wrapf(err, "create %s", cfg.DataDir)
	}
	o.Features = cfg.Features

	test := o
	test.Cards = testCards
	test.Seed = o.Seed + 1

	for _, f := range []struct {
		path string
		opts data.SynthOptions
	}{
		{cfg.TrainPath(), o},
		{cfg.TestPath(), test},
	} {
		rows, err := writeSynthetic(f.path, f.opts)
		if err != nil {
			return err
		}
		log.Printf("generated: path=%s cards=%d rows=%d", f.path, f.opts.Cards, rows)
	}
	return nil
}

func writeSynthetic(path string, o data.SynthOptions) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrap(err, "create data file")
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	rows, err := data.Synthesize(w, o)
	if err != nil {
		return 0, errors.Wrapf(err, "synthesize %s", path)
	}
	if err := w.Flush(); err != nil {
		return 0, errors.Wrapf(err, "write %s", path)
	}
	return rows, errors.Wrapf(file.Close(), "close %s", path)
}
