package data

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Layout of a synthetic row. Remaining columns one-hot encode the merchant category.
const (
	colAmount = iota
	colHourSin
	colHourCos
	colGap
	colOnline
	colForeign
	numScalarCols
)

// riskyCategories is the number of leading merchant categories favoured by fraud.
const riskyCategories = 8

// SynthOptions configures Synthesize.
type SynthOptions struct {
	Cards    int
	MinTx    int
	MaxTx    int
	Features int
	// FraudRate is the probability that a card is compromised at some point in its history.
	FraudRate float64
	Seed      uint64
}

// DefaultSynthOptions returns options producing a small but learnable dataset.
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{
		Cards:     500,
		MinTx:     10,
		MaxTx:     40,
		Features:  DefaultFeatures,
		FraudRate: 0.3,
		Seed:      42,
	}
}

// Synthesize writes a synthetic transaction file in the format read by ReadCSV.
// Each card has a spending profile; compromised cards switch, from a random
// point on, to a burst of large, late-night, foreign transactions in risky
// merchant categories that are labelled as fraud.
func Synthesize(w io.Writer, o SynthOptions) (rows int, err error) {
	categories := o.Features - numScalarCols
	if categories <= riskyCategories {
		return 0, errors.Errorf("need more than %d features, got %d", numScalarCols+riskyCategories, o.Features)
	}
	if o.Cards <= 0 || o.MinTx <= 0 || o.MaxTx < o.MinTx {
		return 0, errors.Errorf("invalid card counts: cards=%d min=%d max=%d", o.Cards, o.MinTx, o.MaxTx)
	}

	src := rand.NewSource(o.Seed)
	rng := rand.New(src)
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}
	gaps := distuv.Exponential{Rate: 1.0 / 36, Src: src} // hours between legitimate purchases
	fraudGaps := distuv.Exponential{Rate: 2, Src: src}
	jitter := distuv.Normal{Mu: 0, Sigma: 1.5, Src: src}

	writer := csv.NewWriter(w)
	header := make([]string, 0, o.Features+2)
	header = append(header, "card")
	for j := 0; j < o.Features; j++ {
		header = append(header, "f"+strconv.Itoa(j))
	}
	header = append(header, "is_fraud")
	if err := writer.Write(header); err != nil {
		return 0, errors.Wrap(err, "write header")
	}

	record := make([]string, o.Features+2)
	feats := make([]float64, o.Features)
	for card := 0; card < o.Cards; card++ {
		n := o.MinTx + rng.Intn(o.MaxTx-o.MinTx+1)
		compromisedAt := n
		if uniform.Rand() < o.FraudRate {
			compromisedAt = n/2 + rng.Intn(n-n/2)
		}

		spend := distuv.LogNormal{Mu: 3 + uniform.Rand(), Sigma: 0.6, Src: src}
		homeHour := 9 + 10*uniform.Rand()
		favourite := riskyCategories + rng.Intn(categories-riskyCategories)

		for tx := 0; tx < n; tx++ {
			fraud := tx >= compromisedAt
			for j := range feats {
				feats[j] = 0
			}

			var amount, hour, gap float64
			var online, foreign bool
			category := favourite
			if fraud {
				amount = spend.Rand() * (5 + 10*uniform.Rand())
				hour = math.Mod(24+1+jitter.Rand(), 24)
				gap = fraudGaps.Rand()
				online = uniform.Rand() < 0.8
				foreign = uniform.Rand() < 0.7
				category = rng.Intn(riskyCategories)
			} else {
				amount = spend.Rand()
				hour = math.Mod(24+homeHour+jitter.Rand()*2, 24)
				gap = gaps.Rand()
				online = uniform.Rand() < 0.2
				foreign = uniform.Rand() < 0.05
				if uniform.Rand() < 0.4 {
					category = riskyCategories + rng.Intn(categories-riskyCategories)
				}
			}

			feats[colAmount] = math.Log1p(amount) / 10
			feats[colHourSin] = math.Sin(2 * math.Pi * hour / 24)
			feats[colHourCos] = math.Cos(2 * math.Pi * hour / 24)
			feats[colGap] = math.Log1p(gap) / 6
			feats[colOnline] = boolToFloat(online)
			feats[colForeign] = boolToFloat(foreign)
			feats[numScalarCols+category] = 1

			record[0] = "card-" + strconv.Itoa(card)
			for j, v := range feats {
				record[j+1] = strconv.FormatFloat(v, 'g', 6, 64)
			}
			record[len(record)-1] = strconv.Itoa(int(boolToFloat(fraud)))
			if err := writer.Write(record); err != nil {
				return rows, errors.Wrap(err, "write row")
			}
			rows++
		}
	}

	writer.Flush()
	return rows, errors.Wrap(writer.Error(), "flush")
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
