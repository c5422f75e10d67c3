package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const tesseractWordLevel = "5"

// Tesseract runs the tesseract CLI in TSV mode and groups words into line fragments.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// NewTesseract builds a detector; a nil runner uses os/exec.
func NewTesseract(cfg Config, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = execRunner{}
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

func (t *Tesseract) Detect(ctx context.Context, img image.Image) ([]Fragment, error) {
	start := time.Now()

	f, err := os.CreateTemp(t.cfg.TempDir, "fx-ocr-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("encode temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp image: %w", err)
	}

	args := []string{path, "stdout", "-l", t.cfg.TesseractLang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, t.logger, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract TSV: %w: %s", err, truncate(string(errb), 512))
	}

	frags, err := ParseTSV(out)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("ocr.tesseract.ok",
		"fragments", len(frags),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return frags, nil
}

type lineKey struct {
	page, block, par, line string
}

type lineAcc struct {
	words   []string
	confSum float64
	confN   int
	x, y    int
}

// ParseTSV reads tesseract TSV output and returns one fragment per text line.
// Word confidences (0..100, -1 for non-words) are averaged into 0..1.
func ParseTSV(data []byte) ([]Fragment, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)

	var order []lineKey
	lines := map[lineKey]*lineAcc{}

	header := true
	for sc.Scan() {
		ln := sc.Text()
		if header {
			header = false
			if strings.HasPrefix(ln, "level") {
				continue
			}
		}
		if ln == "" {
			continue
		}
		// level page block par line word left top width height conf text
		cols := strings.SplitN(ln, "\t", 12)
		if len(cols) < 12 || cols[0] != tesseractWordLevel {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		left, errL := strconv.Atoi(cols[6])
		top, errT := strconv.Atoi(cols[7])
		if errL != nil || errT != nil {
			continue
		}

		key := lineKey{cols[1], cols[2], cols[3], cols[4]}
		acc, ok := lines[key]
		if !ok {
			acc = &lineAcc{x: left, y: top}
			lines[key] = acc
			order = append(order, key)
		}
		acc.words = append(acc.words, text)
		acc.confSum += conf
		acc.confN++
		if left < acc.x {
			acc.x = left
		}
		if top < acc.y {
			acc.y = top
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}

	out := make([]Fragment, 0, len(order))
	for _, k := range order {
		acc := lines[k]
		text := Normalize(strings.Join(acc.words, " "))
		if text == "" {
			continue
		}
		out = append(out, Fragment{
			Label:      DetectedTextLabel,
			Text:       text,
			Confidence: clamp01(acc.confSum / float64(acc.confN) / 100),
			Position:   Position{X: acc.x, Y: acc.y},
		})
	}
	return out, nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
