package ocr

import (
	"context"
	"errors"
	"image"
	"os"
	"slices"
	"testing"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t20\t30\t300\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t20\t32\t60\t20\t90\tName:\n" +
	"5\t1\t1\t1\t1\t2\t90\t30\t80\t20\t70\tJane\n" +
	"5\t1\t1\t1\t2\t1\t22\t80\t60\t20\t80\tDate:\n" +
	"5\t1\t1\t1\t2\t2\t95\t80\t60\t20\t-1\t \n" +
	"5\t1\t1\t1\t2\t3\t160\t81\t90\t20\t60\t2024-01-01\n" +
	"5\t1\t2\t1\t1\t1\t20\t200\t90\t20\t50\t------\n"

func TestParseTSVGroupsWordsIntoLines(t *testing.T) {
	frags, err := ParseTSV([]byte(sampleTSV))
	if err != nil {
		t.Fatalf("ParseTSV: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("fragments = %+v", frags)
	}
	if frags[0].Text != "Name: Jane" || frags[0].Position != (Position{X: 20, Y: 30}) {
		t.Errorf("line 1 = %+v", frags[0])
	}
	if got := frags[0].Confidence; got < 0.799 || got > 0.801 {
		t.Errorf("line 1 confidence = %v, want 0.8", got)
	}
	if frags[1].Text != "Date: 2024-01-01" || frags[1].Position != (Position{X: 22, Y: 80}) {
		t.Errorf("line 2 = %+v", frags[1])
	}
}

func TestTesseractDetectBuildsArgs(t *testing.T) {
	var gotName string
	var gotArgs []string
	runner := RunnerFunc(func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotName, gotArgs = name, args
		if _, err := os.Stat(args[0]); err != nil {
			t.Errorf("temp image missing: %v", err)
		}
		return []byte(sampleTSV), nil, nil
	})
	det := NewTesseract(Config{PSM: 6, TessdataDir: "/td", TempDir: t.TempDir()}, runner, nil)

	frags, err := det.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("fragments = %d", len(frags))
	}
	if gotName != "tesseract" {
		t.Errorf("binary = %q", gotName)
	}
	for _, want := range []string{"stdout", "-l", "eng", "--psm", "6", "--tessdata-dir", "/td", "tsv"} {
		if !slices.Contains(gotArgs, want) {
			t.Errorf("args %v missing %q", gotArgs, want)
		}
	}
	if slices.Contains(gotArgs, "--oem") {
		t.Errorf("args %v should not set --oem", gotArgs)
	}
	if _, err := os.Stat(gotArgs[0]); !os.IsNotExist(err) {
		t.Errorf("temp image not removed: %v", err)
	}
}

func TestTesseractDetectPropagatesRunnerError(t *testing.T) {
	runner := RunnerFunc(func(context.Context, string, ...string) ([]byte, []byte, error) {
		return nil, []byte("Error opening data file"), errors.New("exit status 1")
	})
	det := NewTesseract(Config{TempDir: t.TempDir()}, runner, nil)
	if _, err := det.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2))); err == nil {
		t.Fatal("expected error")
	}
}
