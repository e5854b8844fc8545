package net

import (
	"encoding/csv"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/FlavioCFOliveira/fraudrnn/internal/metrics"
)

// CSVLogger logs per-epoch metrics to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(m *Sequential) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		log.Printf("csv logger: open %s: %v", c.Filename, err)
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.writer.Write([]string{"epoch", "loss", "accuracy", "tp", "fp", "fn", "tn", "time_seconds"})
		c.writer.Flush()
	}
}

func (c *CSVLogger) OnEpochEnd(epoch int, logs metrics.Logs, m *Sequential) {
	if c.writer == nil {
		return
	}

	record := []string{
		strconv.Itoa(epoch),
		strconv.FormatFloat(logs.Loss, 'f', 6, 64),
		strconv.FormatFloat(logs.Accuracy(), 'f', 6, 64),
		strconv.Itoa(logs.TP),
		strconv.Itoa(logs.FP),
		strconv.Itoa(logs.FN),
		strconv.Itoa(logs.TN),
		strconv.FormatFloat(time.Since(c.start).Seconds(), 'f', 2, 64),
	}

	if err := c.writer.Write(record); err != nil {
		log.Printf("csv logger: write: %v", err)
	}
	c.writer.Flush()
}

func (c *CSVLogger) OnTrainEnd(m *Sequential) {
	if c.file != nil {
		c.writer.Flush()
		c.file.Close()
		c.file = nil
		c.writer = nil
	}
}
